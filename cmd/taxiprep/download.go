package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taxiprep/internal/datasource/httpds"
	"taxiprep/internal/download"
	"taxiprep/internal/logging"
)

func downloadCmd() *cobra.Command {
	var (
		years, months string
		taxiType      string
		dest          string
		baseURL       string
		workers       int
		retries       int
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch monthly TLC trip files",
		Long: `Fetch {taxi-type}_tripdata_{year}-{month}.parquet for every requested year
and month into --dest. Files already present are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ys, err := download.ParseYears(years)
			if err != nil {
				return err
			}
			ms, err := download.ParseMonths(months)
			if err != nil {
				return err
			}

			level := "info"
			if v, _ := cmd.Flags().GetBool("verbose"); v {
				level = "debug"
			}
			log := logging.New(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})

			client := httpds.NewClient(httpds.Config{
				Name:       "tlc-download",
				Timeout:    timeout,
				MaxRetries: retries,
				Logger:     log,
			})
			d := download.New(client, download.Options{BaseURL: baseURL, Dest: dest, Workers: workers, Logger: log})

			reqs := download.Requests(taxiType, ys, ms)
			fmt.Fprintf(cmd.OutOrStdout(), "downloading %d %s files into %s\n", len(reqs), taxiType, dest)
			results, runErr := d.Run(cmd.Context(), reqs)

			failed := printDownloads(cmd, results)
			if runErr != nil && failed == 0 {
				return runErr
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(reqs))
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&years, "years", "2022,2023,2024", "comma separated years")
	fl.StringVar(&months, "months", "1-12", "months and ranges, e.g. 1-3,7")
	fl.StringVar(&taxiType, "taxi-type", "yellow", "yellow or green")
	fl.StringVar(&dest, "dest", "data/raw", "destination directory")
	fl.StringVar(&baseURL, "base-url", download.DefaultBaseURL, "trip data base URL")
	fl.IntVar(&workers, "workers", download.DefaultWorkers, "concurrent downloads")
	fl.IntVar(&retries, "retries", 3, "retries per file on transient failures")
	fl.DurationVar(&timeout, "timeout", 10*time.Minute, "timeout per request")
	return cmd
}

// printDownloads lists the results and returns the number of failures.
func printDownloads(cmd *cobra.Command, results []download.Result) int {
	w := cmd.OutOrStdout()
	ok := color.New(color.FgGreen)
	skip := color.New(color.FgBlue)
	bad := color.New(color.FgRed)

	failed := 0
	for _, r := range results {
		switch r.Status {
		case download.StatusDownloaded:
			ok.Fprintf(w, "%-10s", r.Status)
			fmt.Fprintf(w, " %s (%s in %s)\n", r.Path, humanize.Bytes(uint64(r.Bytes)), r.Duration.Round(time.Millisecond))
		case download.StatusSkipped:
			skip.Fprintf(w, "%-10s", r.Status)
			fmt.Fprintf(w, " %s\n", r.Path)
		case download.StatusFailed:
			failed++
			bad.Fprintf(w, "%-10s", r.Status)
			fmt.Fprintf(w, " %s: %v\n", r.Request.FileName(), r.Err)
		}
	}
	return failed
}
