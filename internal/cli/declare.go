package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/store"
)

var declareCmd = &cobra.Command{
	Use:   "declare",
	Short: "Edit how you describe yourself",
	Long:  "Every edit keeps the previous declared identity as a version; see `lifeaxes history`.",
}

// withEngine opens the database and runs fn with an engine over it.
func withEngine(cmd *cobra.Command, fn func(*engine.Engine) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	eng, err := newEngine(db)
	if err != nil {
		return err
	}
	return fn(eng)
}

func printDeclared(out io.Writer, d *store.DeclaredIdentity) {
	if d == nil {
		fmt.Fprintln(out, "Nothing declared yet.")
		return
	}
	bio := d.BioText
	if bio == "" {
		bio = "(no bio)"
	}
	fmt.Fprintln(out, bio)
	if len(d.CoreLabels) > 0 {
		fmt.Fprintf(out, "labels: %s\n", strings.Join(d.CoreLabels, ", "))
	}
}

var declareShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the declared identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			d, err := e.Declared.GetDeclared(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printDeclared(cmd.OutOrStdout(), d)
			return nil
		})
	},
}

var declareBioCmd = &cobra.Command{
	Use:   "bio <text>",
	Short: "Replace the bio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			d, err := e.SetBio(cmd.Context(), userID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printDeclared(cmd.OutOrStdout(), d)
			return nil
		})
	},
}

var declareAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Add a core label",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			d, err := e.AddCoreLabel(cmd.Context(), userID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printDeclared(cmd.OutOrStdout(), d)
			return nil
		})
	},
}

var declareRemoveCmd = &cobra.Command{
	Use:     "remove <label>",
	Aliases: []string{"rm"},
	Short:   "Remove a core label",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			d, err := e.RemoveCoreLabel(cmd.Context(), userID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printDeclared(cmd.OutOrStdout(), d)
			return nil
		})
	},
}

// --- history command ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List earlier versions of the declared identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			versions, err := e.DeclaredHistory(cmd.Context(), userID, historyLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				if versions == nil {
					versions = []store.DeclaredVersion{}
				}
				return printJSON(out, versions)
			}
			if len(versions) == 0 {
				fmt.Fprintln(out, "No earlier versions.")
				return nil
			}
			for _, v := range versions {
				fmt.Fprintf(out, "%s  %s  [%s]\n",
					v.CreatedAt.Format("2006-01-02 15:04"), v.BioText, strings.Join(v.CoreLabels, ", "))
			}
			return nil
		})
	},
}

func init() {
	declareCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user ID")
	declareCmd.MarkPersistentFlagRequired("user")
	declareCmd.AddCommand(declareShowCmd, declareBioCmd, declareAddCmd, declareRemoveCmd)

	addUserFlag(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum versions")
	historyCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
}
