package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/mcqsheet"
	"github.com/brunobiangulo/mcqsheet/store"
)

func newRunsCmd(g *globalFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past conversion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.engine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			runs, err := engine.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			if s := engine.Store(); s != nil {
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printBankSummary(cmd.OutOrStdout(), stats)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")

	cmd.AddCommand(newRunShowCmd(g), newRunDeleteCmd(g))
	return cmd
}

func newRunShowCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.engine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			run, err := engine.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run as JSON")
	return cmd
}

func newRunDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove a run and its questions from the question bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := g.engine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run %s\n", args[0])
			return nil
		},
	}
}

func printRuns(w io.Writer, runs []mcqsheet.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tQUESTIONS\tCONVERTER\tCREATED")
	for _, r := range runs {
		questions := "-"
		if r.Stats != nil {
			questions = fmt.Sprint(r.Stats.Records)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Filename, r.Status, questions, r.Converter, r.CreatedAt)
	}
	tw.Flush()
}

func printBankSummary(w io.Writer, s *store.DBStats) {
	fmt.Fprintf(w, "\nQuestion bank: %d runs, %d questions, %d fingerprints\n",
		s.Runs, s.Questions, s.Embeddings)
}

func printRun(w io.Writer, r *mcqsheet.Run) {
	fmt.Fprintf(w, "Run:        %s\n", r.ID)
	fmt.Fprintf(w, "Source:     %s\n", r.Source)
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
	fmt.Fprintf(w, "Converter:  %s (%s notation)\n", r.Converter, r.Notation)
	if r.Strategy != "" {
		fmt.Fprintf(w, "Strategy:   %s\n", r.Strategy)
	}
	if r.OutputPath != "" {
		fmt.Fprintf(w, "Output:     %s\n", r.OutputPath)
	}
	if r.Stats != nil {
		fmt.Fprintf(w, "Questions:  %d of %d blocks (%d pattern 2, %d images missing)\n",
			r.Stats.Records, r.Stats.Blocks, r.Stats.Pattern2, r.Stats.ImagesMissing)
	}
	fmt.Fprintf(w, "Created:    %s\n", r.CreatedAt)

	if len(r.Questions) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIAL\tANSWER\tQUESTION")
	for _, q := range r.Questions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", q.Serial, q.Answer, truncate(q.Question, 70))
	}
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
