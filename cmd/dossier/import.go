package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dossier/internal/backfill"
)

var importFlags struct {
	user        string
	state       string
	dryRun      bool
	minMessages int
}

var importCmd = &cobra.Command{
	Use:   "import [paths...]",
	Short: "Import transcript files into a user's profile",
	Long: `Walk files and directories (.txt, .md, .jsonl), split each conversation
into windows, extract knowledge chunks and commit them to the user's profile.

Progress is kept in a state file so interrupted runs resume and files that
were already imported are skipped, even when renamed.

Example:
  dossier import --user 7f9c... ./calls --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFlags.user == "" {
			return errors.New("--user is required")
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := slog.Default()
		a, err := newApp(ctx, logger, false)
		if err != nil {
			return err
		}
		defer a.close()

		runner := backfill.NewRunner(backfill.Config{
			Paths:       args,
			UserID:      importFlags.user,
			StatePath:   importFlags.state,
			DryRun:      importFlags.dryRun,
			MinMessages: importFlags.minMessages,
		}, a.proc, logger)

		rep, err := runner.Run(ctx)
		if rep != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(rep); encErr != nil {
				return encErr
			}
		}
		return err
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFlags.user, "user", "u", "", "user id")
	importCmd.Flags().StringVar(&importFlags.state, "state", os.Getenv("DOSSIER_BACKFILL_STATE"), "state file path (default "+backfill.DefaultStatePath+")")
	importCmd.Flags().BoolVar(&importFlags.dryRun, "dry-run", false, "extract only, do not commit")
	importCmd.Flags().IntVar(&importFlags.minMessages, "min-messages", 1, "skip files with fewer messages")
	rootCmd.AddCommand(importCmd)
}
