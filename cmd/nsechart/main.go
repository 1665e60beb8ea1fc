package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/raykavin/nsechart/pkg/config"
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/feed"
	"github.com/raykavin/nsechart/pkg/logger"
	logzero "github.com/raykavin/nsechart/pkg/logger/zerolog"
	"github.com/raykavin/nsechart/pkg/plot"
	"github.com/raykavin/nsechart/pkg/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// Command line flags
var (
	configPath string

	// Chart flags shared by render and inspect
	toggles  string
	theme    string
	period   string
	interval string
	compare  string

	// Render command flags
	outputDir string
	width     int
	viewport  int

	// Inspect command flags
	last int
	bins int

	// Download command flags
	outputFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create root command
	rootCmd := &cobra.Command{
		Use:          "nsechart",
		Short:        "Candlestick charts with technical indicators for NSE listed stocks",
		Version:      "1.0.0",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML, JSON or TOML)")

	// Add commands
	rootCmd.AddCommand(buildServeCmd(), buildRenderCmd(), buildInspectCmd(), buildDownloadCmd())

	// Execute
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addChartFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&toggles, "toggles", "t", "", "Indicators to draw (e.g. sma20,rsi14,macd or all)")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme, dark or light (default from config)")
	cmd.Flags().StringVarP(&period, "period", "p", "", "History period (e.g. 1mo, 3mo, 1y, 90d)")
	cmd.Flags().StringVarP(&interval, "interval", "i", "", "Bar interval (default from config)")
	cmd.Flags().StringVar(&compare, "compare", "", "Symbol to overlay on its own scale")
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive chart",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func buildRenderCmd() *cobra.Command {
	renderCmd := &cobra.Command{
		Use:   "render TICKER [TICKER...]",
		Short: "Render chart images",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRender,
	}

	addChartFlags(renderCmd)
	renderCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	renderCmd.Flags().IntVarP(&width, "width", "w", 0, "Image width (default from config)")
	renderCmd.Flags().IntVar(&viewport, "viewport", 0, "Viewport width deciding the height tier (default width)")

	return renderCmd
}

func buildInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect TICKER",
		Short: "Print the latest indicator values and the return distribution",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	addChartFlags(inspectCmd)
	inspectCmd.Flags().IntVarP(&last, "last", "n", 10, "Number of bars to print")
	inspectCmd.Flags().IntVar(&bins, "bins", 15, "Histogram bins")

	return inspectCmd
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download TICKER",
		Short: "Download history to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&period, "period", "p", "", "History period (e.g. 1mo, 3mo, 1y, 90d)")
	downloadCmd.Flags().StringVarP(&interval, "interval", "i", "", "Bar interval (default from config)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./data/TCS.csv)")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

// app bundles what every command needs
type app struct {
	cfg    *config.Config
	log    logger.Logger
	source feed.Source
	close  func()
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logzero.New(cfg.Log.Level, cfg.Log.TimeFormat, cfg.Log.Colored, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}

	var source feed.Source
	switch cfg.Feed.Kind {
	case config.FeedHTTP:
		source = feed.NewHTTPSource(cfg.Feed.BaseURL,
			feed.WithTimeout(cfg.Feed.Timeout),
			feed.WithRetries(cfg.Feed.Retries),
			feed.WithSourceLogger(log),
		)
	default:
		source = feed.NewCSVSource(cfg.Feed.CSVDir)
	}

	cached, err := feed.NewCachedSource(source, cfg.Feed.CachePath,
		feed.WithTTL(cfg.Feed.CacheTTL),
		feed.WithCacheLogger(log),
	)
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]any{
		"feed":  cfg.Feed.Kind,
		"cache": cfg.Feed.CachePath,
	}).Debug("configuration loaded")

	return &app{
		cfg:    cfg,
		log:    log,
		source: cached,
		close: func() {
			if err := cached.Close(); err != nil {
				log.WithError(err).Warn("failed to close history cache")
			}
		},
	}, nil
}

// window returns the period and interval flags, defaulting to the configured ones
func (a *app) window() (string, string) {
	window, barInterval := period, interval
	if window == "" {
		window = a.cfg.Feed.Period
	}
	if barInterval == "" {
		barInterval = a.cfg.Feed.Interval
	}
	return window, barInterval
}

// chartInputs loads the bars of ticker and the comparison overlay named by the flags
func (a *app) chartInputs(ctx context.Context, ticker string) (plot.Inputs, error) {
	set, err := core.ParseToggles(toggles)
	if err != nil {
		return plot.Inputs{}, err
	}

	if theme == "" {
		set.Theme = a.cfg.Chart.Theme
	} else if set.Theme, err = core.ParseTheme(theme); err != nil {
		return plot.Inputs{}, err
	}

	window, barInterval := a.window()

	bars, err := a.source.History(ctx, ticker, window, barInterval)
	if err != nil {
		return plot.Inputs{}, err
	}

	if compare != "" {
		set.Comparison, err = feed.Comparison(ctx, a.source, compare, window, barInterval)
		if err != nil {
			return plot.Inputs{}, err
		}
	}

	return plot.Inputs{Bars: bars, Toggles: set}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	options := []plot.ServerOption{
		plot.WithPort(a.cfg.Server.Port),
		plot.WithSeed(a.cfg.Chart.EMASeed),
		plot.WithTheme(a.cfg.Chart.Theme),
		plot.WithDefaultWidth(a.cfg.Chart.Width),
		plot.WithHistoryWindow(a.cfg.Feed.Period, a.cfg.Feed.Interval),
	}
	if a.cfg.Server.Debug {
		options = append(options, plot.WithDebug())
	}

	server, err := plot.NewServer(a.log, a.source, options...)
	if err != nil {
		return err
	}

	return server.Start(cmd.Context())
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	imageWidth := width
	if imageWidth <= 0 {
		imageWidth = a.cfg.Chart.Width
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	progressBar := progressbar.Default(int64(len(args)), "rendering")
	failed := 0
	for _, arg := range args {
		if err := a.render(cmd.Context(), arg, imageWidth); err != nil {
			failed++
			a.log.WithField("ticker", arg).WithError(err).Error("render failed")
		}
		_ = progressBar.Add(1)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d charts failed", failed, len(args))
	}
	return nil
}

func (a *app) render(ctx context.Context, arg string, imageWidth int) error {
	ticker, err := feed.NormalizeTicker(arg)
	if err != nil {
		return err
	}

	inputs, err := a.chartInputs(ctx, ticker)
	if err != nil {
		return err
	}

	return renderFile(filepath.Join(outputDir, ticker+".png"), inputs, imageWidth, viewport,
		plot.WithLogger(a.log.WithField("ticker", ticker)),
		plot.WithEMASeed(a.cfg.Chart.EMASeed),
	)
}

// renderFile writes the PNG of inputs to path. Nothing is written when rendering fails.
func renderFile(path string, inputs plot.Inputs, imageWidth, viewportWidth int, options ...plot.Option) error {
	buffer := bytes.NewBuffer(nil)
	err := plot.RenderBars(buffer, inputs.Bars, inputs.Toggles, imageWidth, viewportWidth, options...)
	if err != nil {
		return err
	}

	return os.WriteFile(path, buffer.Bytes(), 0o644)
}

func runInspect(cmd *cobra.Command, args []string) error {
	if bins <= 0 {
		return fmt.Errorf("--bins must be positive, got %d", bins)
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ticker, err := feed.NormalizeTicker(args[0])
	if err != nil {
		return err
	}

	inputs, err := a.chartInputs(cmd.Context(), ticker)
	if err != nil {
		return err
	}

	manager := plot.NewManager(plot.NewFixedContainer(a.cfg.Chart.Width, 0),
		plot.WithLogger(a.log),
		plot.WithEMASeed(a.cfg.Chart.EMASeed),
	)
	defer manager.Close()
	manager.Update(inputs)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s), %d bars\n", ticker, feed.Symbol(ticker), len(inputs.Bars))
	if err := report.Table(out, manager.Instance(), last); err != nil {
		return fmt.Errorf("no history for %s: %w", ticker, err)
	}

	fmt.Fprintln(out, "------ DAILY RETURN % -------")
	if err := report.Returns(out, inputs.Bars, bins); err != nil {
		return err
	}

	fmt.Fprintln(out, "------ CONFIDENCE INTERVAL (95%) -------")
	return report.Stats(out, inputs.Bars)
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ticker, err := feed.NormalizeTicker(args[0])
	if err != nil {
		return err
	}

	window, barInterval := a.window()

	bars, err := a.source.History(cmd.Context(), ticker, window, barInterval)
	if err != nil {
		return err
	}

	buffer := bytes.NewBuffer(nil)
	if err := feed.WriteCSV(buffer, bars); err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, buffer.Bytes(), 0o644); err != nil {
		return err
	}

	a.log.WithFields(map[string]any{
		"ticker": ticker,
		"bars":   len(bars),
		"file":   outputFile,
	}).Info("history downloaded")
	return nil
}
