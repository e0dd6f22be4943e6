package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

var taxonomyTree bool

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Print the profile taxonomy",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx := taxonomy.Default()
		out := cmd.OutOrStdout()
		if !taxonomyTree {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tx)
		}
		fmt.Fprintf(out, "taxonomy %s (%d fields)\n", tx.Version, tx.FieldCount())
		for _, s := range tx.Sections {
			fmt.Fprintf(out, "%s  %s\n", s.Key, s.Name)
			for _, ss := range s.Subsections {
				fmt.Fprintf(out, "  %s  %s\n", ss.Key, ss.Name)
				for _, f := range ss.Fields {
					fmt.Fprintf(out, "    %s  %s\n", f.Key, f.Name)
				}
			}
		}
		return nil
	},
}

func init() {
	taxonomyCmd.Flags().BoolVar(&taxonomyTree, "tree", false, "print an indented tree instead of JSON")
	rootCmd.AddCommand(taxonomyCmd)
}
