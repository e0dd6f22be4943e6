package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dossier/internal/commit"
	"github.com/MikeSquared-Agency/dossier/internal/extractor"
	"github.com/MikeSquared-Agency/dossier/internal/processor"
	"github.com/MikeSquared-Agency/dossier/internal/store/memory"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

var extractFlags struct {
	file       string
	sourceType string
	section    string
	subsection string
	noGap      bool
}

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Preview what a transcript would add to a profile",
	Long: `Run the two-pass extraction on a transcript and print the preview as JSON.
Nothing is stored. The transcript is read from the file argument or stdin.

Example:
  dossier extract call.txt --source-type voice --section organization`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open transcript: %w", err)
			}
			defer f.Close()
			r = f
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}

		ext, err := newExtractor(logger)
		if err != nil {
			return err
		}
		if extractFlags.noGap {
			ext.WithGapAnalysis(false)
		}
		st := memory.New()
		proc := processor.New(st, ext, commit.New(st, taxonomy.Default(), nil, logger), nil, nil, logger)

		res, err := proc.Extract(context.Background(), "cli", processor.ExtractRequest{
			Transcript: string(data),
			SourceType: extractFlags.sourceType,
			Scope:      extractor.Scope{Section: extractFlags.section, Subsection: extractFlags.subsection},
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractFlags.sourceType, "source-type", "text", "voice|text|import")
	extractCmd.Flags().StringVar(&extractFlags.section, "section", "", "restrict extraction to a section")
	extractCmd.Flags().StringVar(&extractFlags.subsection, "subsection", "", "restrict extraction to a subsection (requires --section)")
	extractCmd.Flags().BoolVar(&extractFlags.noGap, "no-gap-analysis", false, "skip the second pass")
	rootCmd.AddCommand(extractCmd)
}
