package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSearchCmd(g *globalFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over every stored question",
		Long: `Search matches the words of the query against question text, topics and
options of every question in the bank.

Examples:
  mcqsheet search "photosynthesis"
  mcqsheet search "সালোকসংশ্লেষণ" --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.engine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			matches, err := engine.SearchQuestions(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(w, "no matching questions")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tSERIAL\tANSWER\tQUESTION")
			for _, m := range matches {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Filename, m.Serial, m.Answer, truncate(m.Question.Question, 70))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of matches")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matches as JSON")
	return cmd
}
