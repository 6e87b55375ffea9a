// Command mcqsheet converts MCQ documents into spreadsheets and manages the
// local question bank.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/mcqsheet"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	noStore    bool
	verbose    bool
}

// openEngine is replaced in tests.
var openEngine = mcqsheet.New

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "mcqsheet",
		Short: "mcqsheet: convert MCQ documents into spreadsheets",
		Long: `mcqsheet reads question papers written in the Bengali/English MCQ
convention (.docx, .pdf or pre-converted .tex/.txt/.md) and writes one
spreadsheet row per question, with images embedded as data URIs.

Every converted question is kept in a local question bank so later runs can
report duplicates and past questions can be searched.

Usage:
  mcqsheet convert <files...> [flags]`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if g.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "Question bank path (default ~/.mcqsheet/mcqsheet.db)")
	root.PersistentFlags().BoolVar(&g.noStore, "no-store", false, "Do not record runs in the question bank")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newConvertCmd(g),
		newImportCmd(g),
		newRunsCmd(g),
		newSearchCmd(g),
		newInspectCmd(),
	)
	return root
}

// loadConfig applies the global flags on top of the config file and
// environment.
func (g *globalFlags) loadConfig() (mcqsheet.Config, error) {
	cfg, err := mcqsheet.LoadConfig(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	if g.noStore {
		cfg.DisableStore = true
	}
	return cfg, nil
}

func (g *globalFlags) engine(mutate func(*mcqsheet.Config)) (mcqsheet.Engine, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return openEngine(cfg)
}

// Execute runs the root command.
func Execute() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
