// Command taxiprep cleans, enriches and partitions NYC taxi trip data.
//
//	taxiprep download --years 2023 --months 1-3
//	taxiprep process --year 2023 --month 1
//	taxiprep validate --config pipeline.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	// register every database sink with the storage factory; the config
	// picks one at run time.
	_ "taxiprep/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "taxiprep",
		Short: "Prepare NYC taxi trip data for modeling",
		Long: `taxiprep loads monthly TLC trip files, removes invalid and outlying trips,
joins zone names, derives calendar features and writes reproducible
train/val/test partitions to files or a database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs on the console")

	root.AddCommand(processCmd())
	root.AddCommand(downloadCmd())
	root.AddCommand(validateCmd())
	return root
}
