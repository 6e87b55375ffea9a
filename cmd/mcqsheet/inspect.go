package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/mcqsheet/sheet"
)

// newInspectCmd summarises an exported workbook without touching the
// question bank.
func newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <workbook.xlsx>",
		Short: "Summarise the questions in an exported workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := sheet.Read(args[0])
			if err != nil {
				return err
			}
			records, meta := table.Records()

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, map[string]any{
					"sheet":    table.Sheet,
					"metadata": meta,
					"records":  records,
				})
			}

			fmt.Fprintf(w, "Sheet:      %s\n", table.Sheet)
			fmt.Fprintf(w, "Questions:  %d\n", len(records))
			if meta.Class != "" || meta.Subject != "" || meta.Chapter != "" {
				fmt.Fprintf(w, "Class:      %s\nSubject:    %s\nChapter:    %s\n",
					meta.Class, meta.Subject, meta.Chapter)
			}
			if len(records) == 0 {
				return nil
			}

			var images, noAnswer int
			for _, r := range records {
				if r.HasImages() {
					images++
				}
				if r.Answer == "" {
					noAnswer++
				}
			}
			fmt.Fprintf(w, "With images: %d\nNo answer:  %d\n\n", images, noAnswer)

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SERIAL\tANSWER\tQUESTION")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Serial, r.Answer, truncate(r.Question, 70))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the records as JSON")
	return cmd
}
