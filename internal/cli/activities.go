package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/lifeaxes/internal/client"
	"github.com/lazypower/lifeaxes/internal/ingest"
	"github.com/lazypower/lifeaxes/internal/store"
)

var userID string

func addUserFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	cmd.MarkFlagRequired("user")
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an activity export (JSON array or JSONL)",
	Long: "Import appends activities to the local log. Records without an owner are " +
		"assigned to --user; records owned by someone else are skipped. Re-importing " +
		"the same export is harmless.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	batch, err := ingest.ParseFile(args[0], userID)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.AddActivities(cmd.Context(), batch.Activities)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	logger.Debug("import done", zap.String("file", args[0]), zap.Int("inserted", n))

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d activities", n, len(batch.Activities))
	if batch.Skipped > 0 || batch.Foreign > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (%d malformed, %d for other users)", batch.Skipped, batch.Foreign)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// --- log command ---

var (
	logType    string
	logSubtype string
	logText    string
	logTags    []string
	logAt      string
	logServer  string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record one activity",
	Long: "Log sends one activity to a running server, or writes it to the local " +
		"database when no server answers.",
	Example: `  lifeaxes log -u ana --type habit --subtype corrida
  lifeaxes log -u ana --type journal --text "terminei o livro" --tags leitura`,
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	typ := strings.ToLower(strings.TrimSpace(logType))
	switch typ {
	case store.TypeHabit, store.TypeJournal, store.TypeFinance, store.TypeBiography:
	default:
		return fmt.Errorf("--type must be habit, journal, finance or biography, got %q", logType)
	}
	at := logAt
	if at == "" {
		at = time.Now().Format(time.RFC3339)
	}
	act := store.Activity{
		UserID:    userID,
		Type:      typ,
		Subtype:   logSubtype,
		Timestamp: at,
		Text:      logText,
		Tags:      logTags,
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	c := client.New(logServer)
	if c.Healthy(ctx) {
		n, err := c.LogActivities(ctx, userID, []store.Activity{act})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged %d activity via %s\n", n, c.URL())
		return nil
	}
	logger.Debug("server unreachable, writing locally", zap.String("url", c.URL()))

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	n, err := db.AddActivities(ctx, []store.Activity{act})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged %d activity to %s\n", n, db.Path)
	return nil
}

func init() {
	addUserFlag(importCmd)

	addUserFlag(logCmd)
	logCmd.Flags().StringVar(&logType, "type", "", "habit, journal, finance or biography")
	logCmd.Flags().StringVar(&logSubtype, "subtype", "", "habit name, expense category, etc.")
	logCmd.Flags().StringVar(&logText, "text", "", "free text")
	logCmd.Flags().StringSliceVar(&logTags, "tags", nil, "comma-separated tags")
	logCmd.Flags().StringVar(&logAt, "at", "", "timestamp (default now)")
	logCmd.Flags().StringVar(&logServer, "server", "", "server URL (default $LIFEAXES_URL)")
	logCmd.MarkFlagRequired("type")
}
