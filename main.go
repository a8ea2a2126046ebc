package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"room_occupancy/collector"
	"room_occupancy/config"
	"room_occupancy/dataset"
	"room_occupancy/ingest"
	"room_occupancy/labeler"
	"room_occupancy/logger"
	"room_occupancy/pipeline"
	"room_occupancy/report"
	"room_occupancy/table"
)

// configEnv names an alternative config file
const configEnv = "OCCUPANCY_CONFIG"

func main() {
	if len(os.Args) < 2 {
		showHelp()
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	// Initialize logging only for commands that need it
	var cfg *config.Config
	if needsLogging(command) {
		cfg = loadConfig()
		if err := logger.Init(cfg); err != nil {
			log.Fatalf("Failed to initialize logging: %v", err)
		}
		defer func() {
			if err := logger.Close(); err != nil {
				log.Fatalf("Failed to close logging: %v", err)
			}
		}()
		logger.LogCommand(os.Args[0], os.Args)
	}

	switch command {
	case "merge":
		mergeCommand(cfg, args)
	case "label":
		labelCommand(cfg, args)
	case "labelgen":
		labelgenCommand(cfg, args)
	case "dataset":
		datasetCommand(cfg, args)
	case "collect":
		collectCommand(cfg, args)
	case "import":
		importCommand(cfg, args)
	case "runs":
		runsCommand(cfg, args)
	case "connect":
		connectCommand(cfg)
	case "migrate":
		migrateCommand(cfg)
	case "migrate:create":
		if len(args) < 1 {
			fmt.Println("Error: migration name required")
			fmt.Println("Usage: occupancy migrate:create <migration_name>")
			return
		}
		createMigrationCommand(cfg, strings.Join(args, " "))
	case "migrate:status":
		migrationStatusCommand(cfg)
	case "db:info":
		dbInfoCommand()
	case "help", "-h", "--help":
		showHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showHelp()
	}
}

// needsLogging determines which commands need logging
func needsLogging(command string) bool {
	loggingCommands := map[string]bool{
		"merge":          true,
		"label":          true,
		"labelgen":       true,
		"dataset":        true,
		"collect":        true,
		"import":         true,
		"runs":           true,
		"connect":        true,
		"migrate":        true,
		"migrate:create": true,
		"migrate:status": true,
	}
	return loggingCommands[command]
}

func showHelp() {
	fmt.Println("Room Occupancy - sensor merge and labeling tool")
	fmt.Println("")
	fmt.Println("Usage: occupancy <command> [flags] [arguments]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  merge [flags] <csv|dir>...     Merge room CSVs into one labeled 1 Hz table")
	fmt.Println("  label [flags] <merged.csv>     Relabel a merged CSV and print the label report")
	fmt.Println("  labelgen [flags] <merged.csv>  Generate label rules from a CSV header")
	fmt.Println("  dataset [flags] <labeled.csv>  Build the training set, evaluate a baseline, write artifacts")
	fmt.Println("  collect [flags]                Collect MQTT readings into a snapshot CSV")
	fmt.Println("  import [flags] <csv|dir>...    Merge and store the run in the database")
	fmt.Println("  runs [-limit n]                List stored runs")
	fmt.Println("  connect                        Test database connection")
	fmt.Println("  migrate                        Run pending migrations")
	fmt.Println("  migrate:create <name>          Create a new migration file")
	fmt.Println("  migrate:status                 Show migration status")
	fmt.Println("  db:info                        Show database information")
	fmt.Println("  help                           Show this help message")
	fmt.Println("")
	fmt.Println("Run 'occupancy <command> -h' for the flags of a command.")
	fmt.Println("")
	fmt.Println("Configuration:")
	fmt.Printf("  Edit config.yaml (or point %s at another file)\n", configEnv)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(os.Getenv(configEnv))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// mergeFlags are shared by merge and import
type mergeFlags struct {
	output    *string
	features  *string
	rules     *string
	label     *string
	period    *time.Duration
	fillLimit *int
	workers   *int
	noPrefix  *bool
}

func addMergeFlags(fs *flag.FlagSet, cfg *config.Config) *mergeFlags {
	return &mergeFlags{
		output:    fs.String("out", "", "merged CSV output path"),
		features:  fs.String("features", "", "feature list JSON output path"),
		rules:     fs.String("rules", "", "label rules JSON; no labeling when empty"),
		label:     fs.String("label", cfg.Pipeline.LabelColumn, "label column name"),
		period:    fs.Duration("period", cfg.Pipeline.Period, "resampling period"),
		fillLimit: fs.Int("fill-limit", cfg.Pipeline.FillLimit, "max consecutive missing ticks to forward fill"),
		workers:   fs.Int("workers", cfg.Pipeline.Workers, "parallel file loaders"),
		noPrefix:  fs.Bool("no-prefix", !cfg.Pipeline.PrefixByRoom, "keep original column names"),
	}
}

func (f *mergeFlags) options(cfg *config.Config, inputs []string) pipeline.Options {
	order, keywords := cfg.RoomKeywordMap()
	opts := pipeline.Options{
		Inputs:       inputs,
		OutputCSV:    *f.output,
		FeaturesJSON: *f.features,
		LabelColumn:  *f.label,
		Period:       *f.period,
		FillLimit:    *f.fillLimit,
		Windows:      cfg.Pipeline.WindowDurations(),
		Workers:      *f.workers,
		RoomOrder:    order,
		RoomKeywords: keywords,
		NoPrefix:     *f.noPrefix,
	}
	if *f.rules != "" {
		rules, err := labeler.LoadRules(*f.rules)
		if err != nil {
			logger.Fatalf("Failed to load label rules: %v", err)
		}
		opts.Rules = rules
	}
	return opts
}

func runMerge(cfg *config.Config, name string, args []string) (*pipeline.Summary, *mergeFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	mf := addMergeFlags(fs, cfg)
	fs.Parse(args)
	if fs.NArg() == 0 {
		logger.Fatalf("%s needs at least one CSV file or directory", name)
	}

	ctx, cancel := signalContext()
	defer cancel()

	sum, err := pipeline.Merge(ctx, mf.options(cfg, fs.Args()))
	if err != nil {
		logger.Fatalf("Merge failed: %v", err)
	}

	logger.LogDivider()
	logger.Printf("Run %s: %d file(s), %d skipped, %d rows x %d columns, %d features in %v",
		sum.RunID, len(sum.Files), len(sum.Skipped), sum.Rows, sum.Columns, len(sum.Features), sum.Duration)
	for _, s := range sum.Skipped {
		logger.Warnf("Skipped %s", s)
	}
	if sum.Labels != nil {
		report.Log(sum.Labels)
	}
	if sum.SingleClass {
		logger.Warnf("Labels contain a single class; the table is not usable for training as is")
	}
	return sum, mf
}

func mergeCommand(cfg *config.Config, args []string) {
	runMerge(cfg, "merge", args)
	logger.LogResult("merge", true, "")
}

func labelCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("label", flag.ExitOnError)
	rulesPath := fs.String("rules", "", "label rules JSON (required)")
	output := fs.String("out", "", "labeled CSV output path")
	labelCol := fs.String("label", cfg.Pipeline.LabelColumn, "label column name")
	period := fs.Duration("period", cfg.Pipeline.Period, "grid period of the input")
	xlsxPath := fs.String("xlsx", "", "write the label report as a workbook")
	fs.Parse(args)
	if fs.NArg() != 1 || *rulesPath == "" {
		logger.Fatalf("Usage: occupancy label -rules rules.json [-out labeled.csv] [-xlsx report.xlsx] <merged.csv>")
	}

	rules, err := labeler.LoadRules(*rulesPath)
	if err != nil {
		logger.Fatalf("Failed to load label rules: %v", err)
	}
	res, err := pipeline.Relabel(pipeline.RelabelOptions{
		Input:       fs.Arg(0),
		Output:      *output,
		Rules:       rules,
		LabelColumn: *labelCol,
		Period:      *period,
	})
	if err != nil {
		logger.Fatalf("Labeling failed: %v", err)
	}

	report.Log(res)
	if *xlsxPath != "" {
		if err := report.WriteXLSX(*xlsxPath, res, nil); err != nil {
			logger.Fatalf("Failed to write workbook: %v", err)
		}
		logger.Printf("Wrote %s", *xlsxPath)
	}
	logger.LogResult("label", true, fs.Arg(0))
}

func labelgenCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("labelgen", flag.ExitOnError)
	output := fs.String("out", "label_rules.json", "rules JSON output path")
	noneLabel := fs.String("none-label", "", "label for rows without an active room")
	fs.Parse(args)
	if fs.NArg() != 1 {
		logger.Fatalf("Usage: occupancy labelgen [-out label_rules.json] <merged.csv>")
	}

	in, err := ingest.ReadFile(fs.Arg(0))
	if err != nil {
		logger.Fatalf("Failed to read %s: %v", fs.Arg(0), err)
	}
	order, keywords := cfg.RoomKeywordMap()
	rules := labeler.Generate(in.Table.Names(), labeler.GenOptions{
		RoomOrder: order,
		Keywords:  keywords,
		NoneLabel: *noneLabel,
	})

	for _, room := range rules.Rooms {
		if len(room.TriggerColumns) == 0 && len(room.CO2Columns) == 0 {
			logger.Warnf("Room %s has no matching columns", room.Name)
			continue
		}
		logger.Printf("Room %s: %d trigger, %d co2 column(s)", room.Name, len(room.TriggerColumns), len(room.CO2Columns))
	}
	if err := pipeline.WriteJSON(*output, rules); err != nil {
		logger.Fatalf("Failed to write rules: %v", err)
	}
	logger.LogResult("labelgen", true, *output)
}

func datasetCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("dataset", flag.ExitOnError)
	outDir := fs.String("out", "artifacts", "artifact directory")
	rulesPath := fs.String("rules", "", "label rules JSON; its columns are excluded from the features")
	labelCol := fs.String("label", cfg.Pipeline.LabelColumn, "label column name")
	testRatio := fs.Float64("test-ratio", 0.2, "share of the newest rows held out for evaluation")
	xlsxPath := fs.String("xlsx", "", "write distribution and confusion matrix as a workbook")
	fs.Parse(args)
	if fs.NArg() != 1 {
		logger.Fatalf("Usage: occupancy dataset [-out dir] [-rules rules.json] <labeled.csv>")
	}

	in, err := ingest.ReadFile(fs.Arg(0))
	if err != nil {
		logger.Fatalf("Failed to read %s: %v", fs.Arg(0), err)
	}

	var exclude []string
	if *rulesPath != "" {
		rules, err := labeler.LoadRules(*rulesPath)
		if err != nil {
			logger.Fatalf("Failed to load label rules: %v", err)
		}
		exclude = rules.UsedColumns()
	}

	ds, err := dataset.Build(in.Table, *labelCol, exclude)
	switch {
	case errors.Is(err, dataset.ErrSingleClass):
		logger.Fatalf("Cannot train: %v", err)
	case err != nil:
		logger.Fatalf("Failed to build dataset: %v", err)
	}
	logger.Printf("Dataset: %d rows, %d features, classes %v", ds.Len(), len(ds.Features), ds.Classes())

	train, test := dataset.Split(ds, *testRatio)
	ev, err := dataset.Evaluate(&dataset.Majority{}, train, test)
	if err != nil {
		logger.Fatalf("Evaluation failed: %v", err)
	}

	meta := dataset.NewMeta(ds, in.TimeColumn, exclude)
	meta.Args = map[string]string{
		"input":      fs.Arg(0),
		"label":      *labelCol,
		"test_ratio": fmt.Sprintf("%g", *testRatio),
		"baseline":   "majority",
	}
	if err := dataset.WriteArtifacts(*outDir, meta); err != nil {
		logger.Fatalf("Failed to write artifacts: %v", err)
	}

	metricsPath := filepath.Join(*outDir, "metrics.txt")
	f, err := os.Create(metricsPath)
	if err != nil {
		logger.Fatalf("Failed to create %s: %v", metricsPath, err)
	}
	if err := report.WriteMetrics(f, ev); err != nil {
		f.Close()
		logger.Fatalf("Failed to write metrics: %v", err)
	}
	if err := f.Close(); err != nil {
		logger.Fatalf("Failed to write metrics: %v", err)
	}
	logger.Printf("Baseline accuracy %.4f on %d test rows", ev.Accuracy, ev.TestRows)

	if *xlsxPath != "" {
		col, _ := in.Table.Column(*labelCol)
		res := &labeler.Result{Index: in.Table.Index, Labels: labelsOf(col)}
		if err := report.WriteXLSX(*xlsxPath, res, ev); err != nil {
			logger.Fatalf("Failed to write workbook: %v", err)
		}
	}
	logger.LogResult("dataset", true, *outDir)
}

// labelsOf turns a read-back label column into text labels; numeric labels
// keep their formatted value.
func labelsOf(col *table.Column) []table.Value {
	if col == nil {
		return nil
	}
	out := make([]table.Value, len(col.Values))
	for i, v := range col.Values {
		if !v.IsMissing() {
			out[i] = table.Text(v.String())
		}
	}
	return out
}

func collectCommand(cfg *config.Config, args []string) {
	cc := cfg.Collector
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	output := fs.String("out", cc.Output, "snapshot CSV path")
	interval := fs.Duration("interval", cc.FlushInterval, "snapshot interval")
	fs.Parse(args)

	mapper, err := collector.NewFieldMapper(cc.Mappings)
	if err != nil {
		logger.Fatalf("Invalid field mappings: %v", err)
	}
	source, err := collector.NewMQTTSource(cc.MQTT, cc.Topics, cc.QoS)
	if err != nil {
		logger.Fatalf("Invalid MQTT settings: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	csvSink, err := collector.NewCSVSink(*output, cc.Columns)
	if err != nil {
		logger.Fatalf("Failed to open snapshot CSV: %v", err)
	}
	sinks := []collector.Sink{csvSink}
	if cc.Redis.Addr != "" {
		redisSink, err := collector.NewRedisSink(ctx, collector.NewRedisClient(cc.Redis), cc.Redis.Key)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		sinks = append(sinks, redisSink)
	}

	c, err := collector.New(collector.Options{
		Columns:       cc.Columns,
		FlushInterval: *interval,
	}, mapper, source, sinks...)
	if err != nil {
		logger.Fatalf("Failed to create collector: %v", err)
	}

	logger.Printf("Collecting %d column(s) from %s every %v into %s", len(cc.Columns), cc.MQTT.Broker, *interval, *output)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Collector stopped: %v", err)
	}

	received, unmapped, flushes := c.Stats()
	logger.Printf("Collector stopped: %d readings, %d unmapped, %d dropped, %d snapshots",
		received, unmapped, source.Dropped(), flushes)
}
