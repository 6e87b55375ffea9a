package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx...>",
		Short: "Add the questions of existing exports to the question bank",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.engine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			w := cmd.OutOrStdout()
			for _, path := range args {
				res, err := engine.Import(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(w, "%s: %d questions stored as run %s\n", path, res.Stats.Records, res.RunID)
				for _, d := range res.Duplicates {
					fmt.Fprintf(w, "  question %s duplicates %s question %s (%.2f)\n",
						d.Serial, d.MatchFilename, d.MatchSerial, d.Score)
				}
			}
			return nil
		},
	}
}
