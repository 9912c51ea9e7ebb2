package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version identifies the report and results schema; it also names created results databases.
const Version = "v1"

func StringEnv(key string, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func IntEnv(key string, def int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:   "thor-benchmark",
		Short: "Benchmark simulator actions across scenes and procedural houses",
		Long: `thor-benchmark drives a remote simulator controller through a scripted
sequence of actions per scene or procedural house, times every step and writes
an aggregated report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "thor-benchmark version %s\n", Version)
		},
	}
}

type runFlags struct {
	configPath        string
	name              string
	benchmarkers      []string
	scenes            []string
	housesFile        string
	experimentSamples int
	actionSamples     int
	filterObjectTypes string
	teleport          bool
	perAction         bool
	onlyTransformed   bool
	verbose           bool
	output            string
	controllerURL     string
	controllerTimeout time.Duration
	resultsDb         string
	seed              int64
	summary           bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark against a simulator controller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			applyEnv(config)
			applyFlags(cmd, config, flags)
			return runBenchmark(cmd.Context(), cmd, config, flags.summary)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", StringEnv("THOR_CONFIG", ""), "Path to a YAML benchmark config")
	f.StringVar(&flags.name, "name", "", "Benchmark title written to the report")
	f.StringSliceVar(&flags.benchmarkers, "benchmarkers", nil, "Benchmarker class names (e.g. SimsPerSecondBenchmarker)")
	f.StringSliceVar(&flags.scenes, "scenes", nil, "Scenes to benchmark")
	f.StringVar(&flags.housesFile, "houses", "", "JSON or JSONL file with procedural houses")
	f.IntVar(&flags.experimentSamples, "experiment-samples", 100, "Experiments per scene and benchmarker")
	f.IntVar(&flags.actionSamples, "action-samples", 1, "Default samples per action group")
	f.StringVar(&flags.filterObjectTypes, "filter-object-types", "", "Comma separated object types to keep in metadata, '*' to drop all")
	f.BoolVar(&flags.teleport, "teleport", false, "Teleport to a random reachable position before each action group")
	f.BoolVar(&flags.perAction, "per-action", false, "Include per-action aggregates in the report")
	f.BoolVar(&flags.onlyTransformed, "only-transformed", true, "Keep only transformed aggregate values")
	f.BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")
	f.StringVar(&flags.output, "output", "benchmark.json", "Report output file")
	f.StringVar(&flags.controllerURL, "controller-url", "", "Base URL of the simulator controller")
	f.DurationVar(&flags.controllerTimeout, "controller-timeout", 60*time.Second, "Timeout of a single controller request")
	f.StringVar(&flags.resultsDb, "results-db", "", "Results database: libsql:// URL or local SQLite path")
	f.Int64Var(&flags.seed, "seed", 0, "Random seed for action selection (0 = current time)")
	f.BoolVar(&flags.summary, "summary", false, "Print a markdown summary to stdout")

	return cmd
}

func applyEnv(config *BenchmarkConfig) {
	config.ControllerURL = StringEnv("THOR_CONTROLLER_URL", config.ControllerURL)
	config.ResultsDb = StringEnv("THOR_RESULTS_DB", config.ResultsDb)
	config.ExperimentSampleCount = IntEnv("THOR_EXPERIMENT_SAMPLES", config.ExperimentSampleCount)
	config.ActionSampleCount = IntEnv("THOR_ACTION_SAMPLES", config.ActionSampleCount)
}

func applyFlags(cmd *cobra.Command, config *BenchmarkConfig, flags runFlags) {
	changed := cmd.Flags().Changed
	if changed("name") {
		config.Name = flags.name
	}
	if changed("benchmarkers") {
		config.Benchmarkers = flags.benchmarkers
	}
	if changed("scenes") {
		config.Scenes = flags.scenes
	}
	if changed("houses") {
		config.HousesFile = flags.housesFile
	}
	if changed("experiment-samples") {
		config.ExperimentSampleCount = flags.experimentSamples
	}
	if changed("action-samples") {
		config.ActionSampleCount = flags.actionSamples
	}
	if changed("filter-object-types") {
		config.FilterObjectTypes = flags.filterObjectTypes
	}
	if changed("teleport") {
		config.TeleportRandomBeforeActions = flags.teleport
	}
	if changed("per-action") {
		config.IncludePerActionBreakdown = flags.perAction
	}
	if changed("only-transformed") {
		config.OnlyTransformedAggregates = flags.onlyTransformed
	}
	if changed("verbose") {
		config.Verbose = flags.verbose
	}
	if changed("output") {
		config.OutputFile = flags.output
	}
	if changed("controller-url") {
		config.ControllerURL = flags.controllerURL
	}
	if changed("controller-timeout") {
		config.ControllerTimeout = flags.controllerTimeout
	}
	if changed("results-db") {
		config.ResultsDb = flags.resultsDb
	}
	if changed("seed") {
		config.Seed = flags.seed
	}
}

func runBenchmark(ctx context.Context, cmd *cobra.Command, config *BenchmarkConfig, summary bool) error {
	logger, err := NewLogger(LogLevel(config.Verbose, StringEnv("LOG_LEVEL", "")))
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var houses []House
	if config.HousesFile != "" {
		source := &HouseFile{}
		houses, err = source.Load(config.HousesFile)
		if err != nil {
			return err
		}
		logger.Infof("loaded %v procedural houses from %v", len(houses), config.HousesFile)
	}

	controller := NewHTTPController(config.ControllerURL, config.ControllerTimeout, config.InitParams)
	build, err := controller.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize controller at %v: %w", config.ControllerURL, err)
	}
	logger.Infof("controller build: %+v", build)

	metrics := NewControllerMetrics()
	metered, err := NewMeteredController(controller, metrics.Meter())
	if err != nil {
		return err
	}

	system, err := NewSystem(config, metered, houses, logger)
	if err != nil {
		return err
	}
	system.SetBuild(build)
	report, err := system.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	report.ControllerStats, err = metrics.Collect(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warnf("failed to collect controller metrics: %v", err)
	}
	if err := metrics.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.Warnf("failed to shut down meter provider: %v", err)
	}

	if err := WriteReport(config.OutputFile, report); err != nil {
		return err
	}
	logger.Infof("report written to %v", config.OutputFile)

	if summary {
		if err := GenerateSummary(cmd.OutOrStdout(), report); err != nil {
			logger.Warnf("failed to generate summary: %v", err)
		}
	}

	return saveResults(context.WithoutCancel(ctx), logger, config, system.ID(), report)
}

// saveResults stores the report in the results database. Without a configured
// database a new one is created through the Turso API when an API token is set.
func saveResults(ctx context.Context, logger *zap.SugaredLogger, config *BenchmarkConfig, run string, report *Report) error {
	storage := &Storage{
		OrgName:   StringEnv("TURSO_ORG_NAME", ""),
		GroupName: StringEnv("TURSO_GROUP_NAME", "default"),
		ApiToken:  StringEnv("TURSO_API_TOKEN", ""),
		AuthToken: StringEnv("TURSO_AUTH_TOKEN", ""),
		Logger:    logger,
	}

	target := config.ResultsDb
	if target == "" {
		if storage.ApiToken == "" {
			return nil
		}
		name := fmt.Sprintf("benchmark-%v-%v-%v", Version, run[:8], time.Now().Unix())
		if err := storage.CreateDatabase(ctx, name); err != nil {
			return fmt.Errorf("unable to create results db %v: %w", name, err)
		}
		target = storage.DbURL(name)
	}

	db, err := storage.ConnectDb(target)
	if err != nil {
		return fmt.Errorf("unable to connect to the results db: %w", err)
	}
	defer db.Close()

	if err := storage.InitResultsDb(ctx, db); err != nil {
		return fmt.Errorf("unable to initialize results db: %w", err)
	}
	if err := storage.SaveReport(ctx, db, run, report); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return nil
}
