package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/lifeaxes/internal/client"
	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/store"
)

var (
	windowFlag string
	jsonOut    bool
)

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&windowFlag, "window", "w", "", "7d, 30d, 90d, 1y or all (default from config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
}

func window() (engine.Window, error) {
	def, err := defaultWindow()
	if err != nil {
		return "", err
	}
	return engine.ParseWindow(windowFlag, def)
}

// --- run command ---

var (
	runAll    bool
	runDry    bool
	runRemote string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute and store a user's axes and achievements",
	Example: `  lifeaxes run -u ana
  lifeaxes run -u ana -w 30d --dry-run
  lifeaxes run --all`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	w, err := window()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if runRemote != "" {
		if userID == "" {
			return fmt.Errorf("--remote needs --user")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		data, err := client.New(runRemote).Run(ctx, userID, w.String())
		if err != nil {
			return err
		}
		_, err = out.Write(append(data, '\n'))
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	eng, err := newEngine(db)
	if err != nil {
		return err
	}

	switch {
	case runAll:
		n, err := eng.RefreshAll(cmd.Context(), w)
		fmt.Fprintf(out, "refreshed %d users (%s)\n", n, w)
		return err
	case userID == "":
		return fmt.Errorf("pass --user or --all")
	case runDry:
		res, err := eng.Observe(cmd.Context(), userID, w)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, res)
		}
		printAxes(out, res.Axes, nil)
		return nil
	}

	rep, err := eng.Run(cmd.Context(), userID, w)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(out, rep)
	}
	printAxes(out, rep.Axes, rep.Statuses)
	for _, id := range rep.NewlyCompleted {
		fmt.Fprintf(out, "achievement completed: %s\n", id)
	}
	if rep.Dropped > 0 {
		fmt.Fprintf(out, "%d activities had unreadable timestamps\n", rep.Dropped)
	}
	return rep.Err()
}

func printAxes(out io.Writer, axes []engine.ObservedAxis, statuses map[string]string) {
	if len(axes) == 0 {
		fmt.Fprintln(out, "No axes yet. Log more activity.")
		return
	}
	for _, a := range axes {
		status := statuses[a.AxisKey]
		if status == "" {
			status = engine.StatusFor(a.Score, "")
		}
		fmt.Fprintf(out, "%-28s %.2f  %-8s  trend %-6s  %d activities, streak %d\n",
			a.Label, a.Score, status, a.Trend, a.Signals.ActivityCount, a.Signals.Streak.Current)
	}
}

// --- axes command ---

var axesStatus string

var axesCmd = &cobra.Command{
	Use:   "axes",
	Short: "List stored axes",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := window()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		axes, err := db.ListAxes(cmd.Context(), userID, w.String())
		if err != nil {
			return err
		}
		var keep []store.AxisRecord
		for _, a := range axes {
			if axesStatus == "" || a.Status == axesStatus {
				keep = append(keep, a)
			}
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			if keep == nil {
				keep = []store.AxisRecord{}
			}
			return printJSON(out, keep)
		}
		if len(keep) == 0 {
			fmt.Fprintf(out, "No stored axes for %s (%s). Try: lifeaxes run -u %s\n", userID, w, userID)
			return nil
		}
		for _, a := range keep {
			fmt.Fprintf(out, "%-28s %.2f  %-8s  trend %-6s  last active %s\n",
				a.Label, a.RelevanceScore, a.Status, a.Trend, a.LastActiveAt.Format("2006-01-02"))
		}
		return nil
	},
}

// --- achievements command ---

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "Show achievement progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		stored, err := db.ListUserAchievements(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if jsonOut {
			if stored == nil {
				stored = []store.UserAchievement{}
			}
			return printJSON(cmd.OutOrStdout(), stored)
		}

		byID := make(map[string]store.UserAchievement, len(stored))
		for _, ua := range stored {
			byID[ua.AchievementID] = ua
		}
		out := cmd.OutOrStdout()
		for _, def := range cat.Achievements {
			title := def.Title
			if title == "" {
				title = def.ID
			}
			ua, ok := byID[def.ID]
			switch {
			case !ok:
				fmt.Fprintf(out, "[ ] %s (not evaluated)\n", title)
			case ua.Completed && ua.CompletedAt != nil:
				fmt.Fprintf(out, "[x] %s (%s)\n", title, ua.CompletedAt.Format("2006-01-02"))
			default:
				fmt.Fprintf(out, "[ ] %s %3.0f%%\n", title, ua.Progress*100)
			}
		}
		return nil
	},
}

// --- compare command ---

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare declared labels with observed axes",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := window()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		eng, err := newEngine(db)
		if err != nil {
			return err
		}
		c, err := eng.Compare(cmd.Context(), userID, w)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, c)
		}
		for _, o := range c.Overlaps {
			fmt.Fprintf(out, "= %s  ~  %s (%.2f)\n", o.Declared, o.Observed, o.Match)
		}
		for _, d := range c.Divergences {
			fmt.Fprintf(out, "- %s: %s\n", d.Declared, strings.ReplaceAll(d.Reason, "_", " "))
		}
		for _, a := range c.Absences {
			fmt.Fprintf(out, "+ %s (%.2f): %s\n", a.Observed, a.Score, strings.ReplaceAll(a.Reason, "_", " "))
		}
		if len(c.Overlaps)+len(c.Divergences)+len(c.Absences) == 0 {
			fmt.Fprintln(out, "Nothing declared and nothing observed yet.")
		}
		return nil
	},
}

// --- feedback command ---

var (
	feedbackHistory bool
	feedbackContext string
	feedbackLimit   int
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Print a plain-language reading of the current axes",
	Long: "Print a plain-language reading of the current axes and record it in the " +
		"user's feedback history. With --history, list earlier feedback instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := window()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		eng, err := newEngine(db)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if feedbackHistory {
			entries, err := eng.FeedbackHistory(cmd.Context(), userID, feedbackContext, feedbackLimit)
			if err != nil {
				return err
			}
			if jsonOut {
				if entries == nil {
					entries = []store.FeedbackEntry{}
				}
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "No feedback recorded for %s.\n", userID)
				return nil
			}
			for _, f := range entries {
				ctxName := f.Context
				if ctxName == "" {
					ctxName = "-"
				}
				fmt.Fprintf(out, "%s  %-18s  %s\n", f.CreatedAt.Local().Format("2006-01-02 15:04"), ctxName, f.Content)
			}
			return nil
		}

		fb, err := eng.Feedback(cmd.Context(), userID, w)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, fb)
		}
		fmt.Fprintln(out, fb.Summary)
		for _, h := range fb.Highlights {
			fmt.Fprintf(out, "  * %s\n", h.Text)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	addWindowFlags(runCmd)
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every user in the log")
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "compute without storing")
	runCmd.Flags().StringVar(&runRemote, "remote", "", "run on the server at this URL instead")

	for _, c := range []*cobra.Command{axesCmd, achievementsCmd, compareCmd, feedbackCmd} {
		addUserFlag(c)
	}
	addWindowFlags(axesCmd)
	axesCmd.Flags().StringVar(&axesStatus, "status", "", "only axes with this status")
	achievementsCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	addWindowFlags(compareCmd)
	addWindowFlags(feedbackCmd)
	feedbackCmd.Flags().BoolVar(&feedbackHistory, "history", false, "list recorded feedback, newest first")
	feedbackCmd.Flags().StringVar(&feedbackContext, "context", "", "with --history, only this context (axis_summary, achievement_unlock, ...)")
	feedbackCmd.Flags().IntVar(&feedbackLimit, "limit", store.FeedbackHistoryLimit, "with --history, maximum entries")
}
