package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taxiprep/internal/config"
	"taxiprep/internal/logging"
	"taxiprep/internal/pipeline"
	"taxiprep/internal/storage"
	"taxiprep/internal/sysmem"
	"taxiprep/internal/telemetry"
)

type processFlags struct {
	configPath     string
	source         string
	output         string
	zones          string
	year           int
	month          int
	noSplit        bool
	forceFullRun   bool
	sink           string
	dsn            string
	seed           uint64
	metricsBackend string
	trace          bool
}

func processCmd() *cobra.Command {
	var f processFlags
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the cleaning pipeline and write partitions",
		Long: `Run the cleaning pipeline over the trip files under --source.

With neither --year nor --month every file in the directory is loaded into
memory at once; such a run must be confirmed with --force-full-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			applyProcessFlags(cmd, &cfg, f)

			stderr := cmd.ErrOrStderr()
			if !reportIssues(stderr, config.ValidatePipeline(cfg)) {
				return errors.New("invalid configuration")
			}
			if cfg.Source.Year == 0 && cfg.Source.Month == 0 {
				warnFullRun(stderr, cfg.Source.ForceFullRun)
			}

			log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: stderr})
			flush, err := setupMetrics(cfg.Metrics, cfg.Job, log)
			if err != nil {
				return err
			}
			defer flush()

			ctx := cmd.Context()
			tel, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "taxiprep", Enabled: cfg.Tracing.Enabled, Writer: stderr})
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() {
				if err := tel.Shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("tracing: shutdown")
				}
			}()

			res, err := pipeline.Run(ctx, cfg, pipeline.Options{Logger: log, Tracer: tel.Tracer})
			if errors.Is(err, pipeline.ErrFullRunNotConfirmed) {
				return fmt.Errorf("%w (pass --force-full-run)", err)
			}
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "pipeline config file (.json, .yaml or .yml)")
	fl.StringVar(&f.source, "source", def.Source.Path, "trip file or directory of monthly files")
	fl.StringVar(&f.output, "output", def.Storage.Path, "output directory of file sinks")
	fl.StringVar(&f.zones, "zones", def.Zones.Path, "zone lookup CSV")
	fl.IntVar(&f.year, "year", 0, "year to process (0 = any)")
	fl.IntVar(&f.month, "month", 0, "month to process, 1-12 (0 = any)")
	fl.BoolVar(&f.noSplit, "no-split", false, "write a single \"full\" partition")
	fl.BoolVar(&f.forceFullRun, "force-full-run", false, "allow a run with neither --year nor --month")
	fl.StringVar(&f.sink, "sink", def.Storage.Kind, "parquet, csv or a database: "+strings.Join(storage.ListKinds(), ", "))
	fl.StringVar(&f.dsn, "dsn", "", "connection string of database sinks")
	fl.Uint64Var(&f.seed, "seed", def.Split.Seed, "split seed")
	fl.StringVar(&f.metricsBackend, "metrics-backend", def.Metrics.Backend, "none, pushgateway or datadog")
	fl.BoolVar(&f.trace, "trace", false, "export spans to stderr")
	return cmd
}

// applyProcessFlags layers explicitly set flags over the loaded config.
func applyProcessFlags(cmd *cobra.Command, cfg *config.Pipeline, f processFlags) {
	set := cmd.Flags().Changed
	if set("source") {
		cfg.Source.Path = f.source
	}
	if set("output") {
		cfg.Storage.Path = f.output
	}
	if set("zones") {
		cfg.Zones.Path = f.zones
	}
	if set("year") {
		cfg.Source.Year = f.year
	}
	if set("month") {
		cfg.Source.Month = f.month
	}
	if f.noSplit {
		cfg.Split.Enabled = false
	}
	if f.forceFullRun {
		cfg.Source.ForceFullRun = true
	}
	if set("sink") {
		cfg.Storage.Kind = f.sink
	}
	if set("dsn") {
		cfg.Storage.DSN = f.dsn
	}
	if set("seed") {
		cfg.Split.Seed = f.seed
	}
	if set("metrics-backend") {
		cfg.Metrics.Backend = f.metricsBackend
	}
	if f.trace {
		cfg.Tracing.Enabled = true
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}
}

// reportIssues prints validation findings and reports whether none of them
// is an error.
func reportIssues(w io.Writer, issues []config.Issue) bool {
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed, color.Bold)
	for _, iss := range issues {
		c := warn
		if iss.Severity == config.SeverityError {
			c = bad
		}
		c.Fprintf(w, "%s", iss.Severity)
		fmt.Fprintf(w, ": %s: %s\n", iss.Path, iss.Message)
	}
	return !config.HasErrors(issues)
}

// warnFullRun tells the operator that every file will be held in memory.
func warnFullRun(w io.Writer, confirmed bool) {
	c := color.New(color.FgYellow, color.Bold)
	c.Fprint(w, "WARNING: ")
	fmt.Fprint(w, "no year or month selected; the full trip history is loaded into memory")
	if st, ok := sysmem.Read(); ok {
		fmt.Fprintf(w, " (%s free of %s)", humanize.IBytes(st.Free), humanize.IBytes(st.Total))
	}
	fmt.Fprintln(w)
	if !confirmed {
		fmt.Fprintln(w, "rerun with --force-full-run to proceed")
	}
}

func printSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "run %s period=%s loaded=%d files=%d", res.RunID, res.Period, res.Load.Rows, len(res.Load.Files))
	if n := len(res.Load.Failed); n > 0 {
		color.New(color.FgYellow).Fprintf(w, " skipped_files=%d", n)
	}
	fmt.Fprintln(w)
	for _, s := range res.Stages {
		fmt.Fprintf(w, "  %s\n", s.Summary())
	}
	for _, a := range res.Artifacts {
		size := ""
		if a.Bytes > 0 {
			size = " " + humanize.Bytes(uint64(a.Bytes))
		}
		fmt.Fprintf(w, "  %-5s %8d rows -> %s%s\n", a.Partition, a.Rows, a.Target, size)
	}
	fmt.Fprintf(w, "done in %s\n", res.Duration.Round(time.Millisecond))
}
