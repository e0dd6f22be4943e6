package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dossier/internal/processor"
	"github.com/MikeSquared-Agency/dossier/internal/score"
)

var scoreFlags struct {
	user  string
	table bool
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print a user's profile completeness score",
	Long: `Load a stored profile and print its score snapshot and weak fields.

Example:
  dossier score --user 7f9c... --table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scoreFlags.user == "" {
			return errors.New("--user is required")
		}
		ctx := context.Background()
		st, closeStore, err := openStore(ctx, slog.Default())
		if err != nil {
			return err
		}
		defer closeStore()

		head, err := st.GetProfileByUser(ctx, scoreFlags.user)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		p, err := st.LoadProfile(ctx, head.ID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		rep := processor.ScoreReport{ProfileID: p.ID, Snapshot: score.Compute(p), Weak: score.WeakFields(p)}

		if scoreFlags.table {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "overall\t%d\tcompletion %d%%\n", rep.Snapshot.Overall, rep.Snapshot.Completion)
			for _, s := range rep.Snapshot.Sections {
				fmt.Fprintf(w, "%s\t%d\tcompletion %d%%\n", s.Key, s.Score, s.Completion)
			}
			return w.Flush()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreFlags.user, "user", "u", "", "user id")
	scoreCmd.Flags().BoolVar(&scoreFlags.table, "table", false, "print a section table instead of JSON")
	rootCmd.AddCommand(scoreCmd)
}
