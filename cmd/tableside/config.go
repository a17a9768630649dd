package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/tableside/internal/config"
	"github.com/zulandar/tableside/internal/db"
	"gorm.io/gorm"
)

const defaultConfigPath = "tableside.yaml"

// connectFromConfig loads the config and opens the journal database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Open(cfg.Journal)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	return cfg, gormDB, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the tableside configuration",
	}
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			printConfig(cmd, cfg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to tableside config file")
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config OK\n")
	fmt.Fprintf(out, "  Server:     %s (dial %v, keepalive %v)\n",
		cfg.Server.URL, cfg.Server.DialTimeout(), cfg.Server.KeepaliveTimeout())
	fmt.Fprintf(out, "  Reconnect:  %v base, %v max, %d attempts\n",
		cfg.Reconnect.BaseInterval(), cfg.Reconnect.MaxInterval(), cfg.Reconnect.MaxAttempts)
	fmt.Fprintf(out, "  Notices:    toast %v, logout delay %v\n",
		cfg.Notices.ToastTimeout(), cfg.Notices.LogoutDelay())
	fmt.Fprintf(out, "  Dashboard:  port %d, %.1f req/s burst %d\n",
		cfg.Dashboard.Port, cfg.Dashboard.RateLimit, cfg.Dashboard.Burst)
	switch cfg.Journal.Driver {
	case "mysql":
		fmt.Fprintf(out, "  Journal:    mysql %s@%s:%d/%s\n",
			cfg.Journal.User, cfg.Journal.Host, cfg.Journal.Port, cfg.Journal.Database)
	default:
		fmt.Fprintf(out, "  Journal:    sqlite %s\n", cfg.Journal.Path)
	}
	if cfg.Relay.Enabled() {
		fmt.Fprintf(out, "  Relay:      %s channel %s (dedup %v)\n",
			cfg.Relay.Platform, cfg.Relay.Channel, cfg.Relay.DedupWindow())
		if cfg.Relay.DigestCron != "" {
			fmt.Fprintf(out, "  Digest:     %s\n", cfg.Relay.DigestCron)
		}
	} else {
		fmt.Fprintf(out, "  Relay:      disabled\n")
	}
}
