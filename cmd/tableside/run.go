package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/tableside/internal/config"
	"github.com/zulandar/tableside/internal/conn"
	"github.com/zulandar/tableside/internal/dashboard"
	"github.com/zulandar/tableside/internal/journal"
	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/ops"
	"github.com/zulandar/tableside/internal/relay"
	"github.com/zulandar/tableside/internal/relay/discord"
	"github.com/zulandar/tableside/internal/relay/slack"
)

const tokenEnv = "TABLESIDE_TOKEN"

func newRunCmd() *cobra.Command {
	var (
		configPath string
		token      string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the backend and serve the dashboard bridge",
		Long: "Connects to the backend socket with the staff token, keeps the floor\n" +
			"mirror in sync, serves the dashboard bridge, and journals and relays alerts.\n" +
			"The token is read from --token or " + tokenEnv + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv(tokenEnv)
			}
			if token == "" {
				return fmt.Errorf("a staff token is required (--token or %s)", tokenEnv)
			}
			return runRun(cmd, configPath, token, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to tableside config file")
	cmd.Flags().StringVar(&token, "token", "", "staff auth token")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "dashboard port (overrides config)")
	return cmd
}

func runRun(cmd *cobra.Command, configPath, token string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Dashboard.Port = port
	}
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	jr, err := journal.New(journal.Opts{DB: gormDB})
	if err != nil {
		return err
	}
	defer jr.Close()

	broker := notice.NewBroker(0)
	sinks := notice.Fanout{broker, jr}

	if cfg.Relay.Enabled() {
		poster, err := newPoster(cfg.Relay)
		if err != nil {
			return err
		}
		rl, err := relay.New(relay.Opts{
			Poster:      poster,
			DB:          gormDB,
			DedupWindow: cfg.Relay.DedupWindow(),
			DigestCron:  cfg.Relay.DigestCron,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, rl)
		go rl.Run(ctx)
		fmt.Fprintf(out, "Relaying alerts to %s channel %s\n", poster.Platform(), poster.Channel())
	}

	client, err := ops.NewClient(ops.ClientOpts{
		URL:   cfg.Server.URL,
		Token: token,
		Dialer: conn.WebsocketDialer{
			HandshakeTimeout: cfg.Server.DialTimeout(),
			Keepalive:        cfg.Server.KeepaliveTimeout(),
		},
		BaseInterval: cfg.Reconnect.BaseInterval(),
		MaxInterval:  cfg.Reconnect.MaxInterval(),
		MaxAttempts:  cfg.Reconnect.MaxAttempts,
		ToastTTL:     cfg.Notices.ToastTimeout(),
		LogoutDelay:  cfg.Notices.LogoutDelay(),
		Sink:         sinks,
	})
	if err != nil {
		return err
	}

	go func() {
		err := dashboard.Start(ctx, dashboard.StartOpts{
			Client: client,
			Broker: broker,
			DB:     gormDB,
			Port:   cfg.Dashboard.Port,
			Rate:   cfg.Dashboard.RateLimit,
			Burst:  cfg.Dashboard.Burst,
			Out:    out,
		})
		if err != nil {
			log.Printf("tableside: %v", err)
			cancel()
		}
	}()

	err = client.Run(ctx)
	if errors.Is(err, ops.ErrLoggedOut) {
		fmt.Fprintf(out, "Session ended: %v\n", err)
	}
	return err
}

// newPoster builds the chat poster for the configured platform.
func newPoster(rc config.RelayConfig) (relay.Poster, error) {
	switch rc.Platform {
	case "slack":
		return slack.New(slack.Opts{BotToken: rc.BotToken, ChannelID: rc.Channel})
	case "discord":
		return discord.New(discord.Opts{BotToken: rc.BotToken, ChannelID: rc.Channel})
	}
	return nil, fmt.Errorf("relay: unsupported platform %q", rc.Platform)
}
