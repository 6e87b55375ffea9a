package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/mcqsheet"
	"github.com/brunobiangulo/mcqsheet/notation"
)

type convertFlags struct {
	output    string
	outputDir string
	class     string
	subject   string
	chapter   string
	notation  string
	converter string
	mediaDir  string
	jobs      int
	quiet     bool
	json      bool
}

func newConvertCmd(g *globalFlags) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert <files...>",
		Short: "Convert MCQ documents to spreadsheets",
		Long: `Convert extracts every question block from each document and writes an
.xlsx workbook next to it (or into --output-dir).

Examples:
  mcqsheet convert exam.docx
  mcqsheet convert exam.docx --output out/exam.xlsx --class Nine --subject Physics
  mcqsheet convert papers/*.docx --output-dir sheets --jobs 4
  mcqsheet convert exam.docx --notation unicode --converter native

Supported formats: ` + strings.Join(mcqsheet.SupportedFormats(), ", "),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, g, f, args)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output workbook (single input only)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "Directory for output workbooks (default: next to each input)")
	cmd.Flags().StringVar(&f.class, "class", "", "Class column value")
	cmd.Flags().StringVar(&f.subject, "subject", "", "Subject column value")
	cmd.Flags().StringVar(&f.chapter, "chapter", "", "Chapter column value")
	cmd.Flags().StringVar(&f.notation, "notation", "", "Equation handling: preserve or unicode (default from config)")
	cmd.Flags().StringVar(&f.converter, "converter", "", "DOCX converter: auto, pandoc or native (default from config)")
	cmd.Flags().StringVar(&f.mediaDir, "media-dir", "", "Resolve image references against this directory")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 2, "Documents converted in parallel")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Hide the progress bar")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print results as JSON")
	return cmd
}

func runConvert(cmd *cobra.Command, g *globalFlags, f *convertFlags, args []string) error {
	if f.output != "" && len(args) > 1 {
		return errors.New("--output takes a single input; use --output-dir for several documents")
	}
	if f.jobs < 1 {
		f.jobs = 1
	}
	if f.outputDir != "" {
		if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	engine, err := g.engine(func(cfg *mcqsheet.Config) {
		if f.converter != "" {
			cfg.Converter = strings.ToLower(f.converter)
		}
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	results := make([]*mcqsheet.Result, len(args))
	errs := make([]error, len(args))
	bar := newProgressBar(cmd.ErrOrStderr(), len(args), f.quiet || len(args) == 1)

	// Failures are collected per document so one bad file does not cancel
	// the rest of the batch.
	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(f.jobs)
	for i, path := range args {
		eg.Go(func() error {
			results[i], errs[i] = engine.Convert(ctx, path, f.options(path)...)
			_ = bar.Add(1)
			return nil
		})
	}
	_ = eg.Wait()
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	if f.json {
		if err := printJSON(out, results, errs, args); err != nil {
			return err
		}
	} else {
		printResults(out, results, errs, args)
	}

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		if len(args) == 1 {
			return errs[0]
		}
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

func (f *convertFlags) options(path string) []mcqsheet.ConvertOption {
	opts := []mcqsheet.ConvertOption{
		mcqsheet.WithMetadata(f.class, f.subject, f.chapter),
	}
	switch {
	case f.output != "":
		opts = append(opts, mcqsheet.WithOutput(f.output))
	case f.outputDir != "":
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		opts = append(opts, mcqsheet.WithOutput(filepath.Join(f.outputDir, base+".xlsx")))
	}
	if f.notation != "" {
		opts = append(opts, mcqsheet.WithNotation(notation.Mode(strings.ToLower(f.notation))))
	}
	if f.mediaDir != "" {
		opts = append(opts, mcqsheet.WithMediaDir(f.mediaDir))
	}
	return opts
}

func printResults(w io.Writer, results []*mcqsheet.Result, errs []error, args []string) {
	var help bool
	for i, res := range results {
		if errs[i] != nil {
			fmt.Fprintf(w, "%s: %v\n", args[i], errs[i])
			help = help || errors.Is(errs[i], mcqsheet.ErrNoRecords)
			continue
		}
		fmt.Fprintf(w, "%s -> %s (%d questions, %d discarded, %s segmentation)\n",
			args[i], res.OutputPath, res.Stats.Records, res.Stats.Discarded(), res.Strategy)
		if res.Stats.ImagesMissing > 0 {
			fmt.Fprintf(w, "  %d image(s) could not be embedded\n", res.Stats.ImagesMissing)
		}
		if res.TablesPath != "" {
			fmt.Fprintf(w, "  %d table(s) written to %s\n", res.TablesFound, res.TablesPath)
		}
		for _, d := range res.Duplicates {
			fmt.Fprintf(w, "  question %s duplicates %s question %s (%.2f)\n",
				d.Serial, d.MatchFilename, d.MatchSerial, d.Score)
		}
	}
	if help {
		fmt.Fprintln(w)
		fmt.Fprintln(w, mcqsheet.NoRecordsHelp)
	}
}

func printJSON(w io.Writer, results []*mcqsheet.Result, errs []error, args []string) error {
	type entry struct {
		File   string           `json:"file"`
		Result *mcqsheet.Result `json:"result,omitempty"`
		Error  string           `json:"error,omitempty"`
	}
	entries := make([]entry, len(args))
	for i := range args {
		entries[i] = entry{File: args[i], Result: results[i]}
		if errs[i] != nil {
			entries[i].Error = errs[i].Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func newProgressBar(w io.Writer, total int, quiet bool) *progressbar.ProgressBar {
	if quiet {
		w = io.Discard
	}
	return progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(!quiet),
	)
}
