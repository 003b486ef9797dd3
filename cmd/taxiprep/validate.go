package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taxiprep/internal/config"
)

func validateCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint a pipeline config and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if !reportIssues(cmd.ErrOrStderr(), config.ValidatePipeline(cfg)) {
				return errors.New("configuration is invalid: " + cfgPath)
			}
			color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), "ok")
			fmt.Fprintf(cmd.OutOrStdout(), ": configuration is valid: %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "pipeline config file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
