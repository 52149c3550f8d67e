package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/KeywordGap/internal/config"
	"github.com/TobiSchelling/KeywordGap/internal/export"
	"github.com/TobiSchelling/KeywordGap/internal/ingest"
	"github.com/TobiSchelling/KeywordGap/internal/llm"
	"github.com/TobiSchelling/KeywordGap/internal/logging"
	"github.com/TobiSchelling/KeywordGap/internal/normalize"
	"github.com/TobiSchelling/KeywordGap/internal/pipeline"
	"github.com/TobiSchelling/KeywordGap/internal/report"
	"github.com/TobiSchelling/KeywordGap/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

// Report formats written by analyze in addition to the export formats.
const (
	formatMarkdown = "md"
	formatHTML     = "html"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kwgap",
	Short:   "Keyword gap analysis between a client and a competitor",
	Long:    "kwgap compares two SEO ranking exports and classifies every keyword into quick wins, steal opportunities, defensive keywords, client wins and content gaps.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; API keys may come from the environment.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return logging.Init(os.Stderr, "INFO", "text")
		}

		var (
			path string
			err  error
		)
		cfg, path, err = config.LoadOrDefault(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "DEBUG"
		}
		if err := logging.Init(os.Stderr, level, cfg.Logging.Format); err != nil {
			return err
		}
		if path == "" {
			slog.Debug("no config file found, using defaults")
		} else {
			slog.Debug("loaded config", "path", path)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kwgap", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/kwgap/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set filter thresholds, output formats and the LLM provider.")
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the recognized column headers",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Supported files: %s\n\n", strings.Join(ingest.SupportedExtensions, ", "))
		for _, a := range normalize.DefaultAliases() {
			fmt.Printf("  %-20s %s\n", a.Field, strings.Join(a.Names, ", "))
		}
	},
}

// --- analyze command ---

var (
	clientPath     string
	competitorPath string
	outDir         string
	formats        []string
	withInsights   bool
	minVolume      int
	maxDifficulty  float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare a client export against a competitor export",
	Example: "  kwgap analyze --client client.csv --competitor rival.xlsx\n" +
		"  kwgap analyze --client a.csv --competitor b.csv --format csv,md --min-volume 0",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("format") {
			formats = cfg.Output.Formats
		}
		if err := checkFormats(formats); err != nil {
			return err
		}
		if !cmd.Flags().Changed("insights") {
			withInsights = cfg.Insights.Enabled
		}

		var provider llm.Provider
		if withInsights {
			provider = llm.CreateProvider(cfg.Insights)
		}
		pipe := pipeline.New(cfg, provider)

		filter := pipe.Filter()
		if cmd.Flags().Changed("min-volume") {
			filter.MinSearchVolume = minVolume
		}
		if cmd.Flags().Changed("max-difficulty") {
			filter.MaxKeywordDifficulty = maxDifficulty
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result := pipe.Run(ctx,
			pipeline.Input{Path: clientPath},
			pipeline.Input{Path: competitorPath},
			pipeline.Options{Filter: &filter, Insights: withInsights},
		)

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if err := result.Err(); err != nil {
			return err
		}

		dir := outDir
		if dir == "" {
			dir = cfg.GetOutputDir()
		}
		written, err := writeOutputs(dir, result, formats)
		for _, path := range written {
			fmt.Printf("  wrote %s\n", path)
		}
		if err != nil {
			return err
		}

		fmt.Println("\nAnalysis complete!")
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&clientPath, "client", "", "Client ranking export (csv, tsv or xlsx)")
	analyzeCmd.Flags().StringVar(&competitorPath, "competitor", "", "Competitor ranking export (csv, tsv or xlsx)")
	analyzeCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default from config)")
	analyzeCmd.Flags().StringSliceVarP(&formats, "format", "f", nil,
		"Output formats: "+strings.Join(allFormats(), ", "))
	analyzeCmd.Flags().BoolVar(&withInsights, "insights", false, "Generate AI insights with the configured LLM")
	analyzeCmd.Flags().IntVar(&minVolume, "min-volume", 0, "Minimum search volume (default from config)")
	analyzeCmd.Flags().Float64Var(&maxDifficulty, "max-difficulty", 0, "Maximum keyword difficulty (default from config)")
	analyzeCmd.MarkFlagRequired("client")
	analyzeCmd.MarkFlagRequired("competitor")
}

func allFormats() []string {
	return append(slices.Clone(export.Formats), formatMarkdown, formatHTML)
}

func checkFormats(requested []string) error {
	valid := allFormats()
	for _, f := range requested {
		if !slices.Contains(valid, f) {
			return fmt.Errorf("unknown format %q; expected one of %s", f, strings.Join(valid, ", "))
		}
	}
	return nil
}

// writeOutputs writes the export formats via the export package and the
// markdown or HTML report alongside them.
func writeOutputs(dir string, result *pipeline.Result, requested []string) ([]string, error) {
	var exportFormats []string
	var reports []string
	for _, f := range requested {
		if f == formatMarkdown || f == formatHTML {
			reports = append(reports, f)
		} else {
			exportFormats = append(exportFormats, f)
		}
	}

	written, err := export.WriteAll(dir, result.Analysis, exportFormats)
	if err != nil {
		return written, err
	}

	text := report.Markdown(result.Analysis, result.Insight)
	for _, f := range reports {
		path := filepath.Join(dir, export.BaseName+"."+f)
		content := text
		if f == formatHTML {
			content = report.Document("Keyword Gap Analysis", text)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		provider := llm.CreateProvider(cfg.Insights)

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		return server.Serve(pipeline.New(cfg, provider), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}
