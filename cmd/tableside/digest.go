package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/tableside/internal/journal"
)

func newDigestCmd() *cobra.Command {
	var (
		configPath string
		period     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the shift digest now",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			until := time.Now()
			d, err := journal.BuildDigest(gormDB, until.Add(-period), until)
			if err != nil {
				return err
			}
			title, body := journal.FormatDigest(d)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", title, body)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to tableside config file")
	cmd.Flags().DurationVar(&period, "period", 12*time.Hour, "how far back the digest looks")
	return cmd
}
