package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blivekit/blive"
	"github.com/blivekit/blive/live"
	"github.com/blivekit/blive/openapi"
)

func connectCmd() *cobra.Command {
	var (
		configPath string
		code       string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join a room's event stream and print events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if code == "" {
				code = cfg.Code
			}
			if code == "" {
				return fmt.Errorf("no identity code: set --code or the code config key")
			}

			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()

			var apiOpts []openapi.ClientOption
			if cfg.APIBaseURL != "" {
				apiOpts = append(apiOpts, openapi.WithBaseURL(cfg.APIBaseURL))
			}
			apiOpts = append(apiOpts, openapi.WithClientLogger(log))
			api := openapi.NewClient(cfg.AccessKeyID, cfg.AccessKeySecret, cfg.AppID, apiOpts...)

			client := blive.New(api, blive.WithLogger(log))
			ctx := cmd.Context()
			if err := client.Start(ctx, code); err != nil {
				return err
			}
			log.Info().Str("game_id", client.GameID()).Msg("connected")

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case <-sig:
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return client.Stop(stopCtx)
				case <-ticker.C:
					// Drain everything queued since the last tick.
					for {
						ev, ok := client.Poll()
						if !ok {
							break
						}
						switch e := ev.(type) {
						case live.MessageEvent:
							fmt.Printf("%s\t%s\n", e.Cmd, e.Payload)
						case live.ErrorEvent:
							log.Error().Err(e.Err).Msg("session error")
							return e.Err
						case live.DisconnectedEvent:
							log.Info().Msg("disconnected")
							return nil
						default:
							log.Debug().Stringer("event", ev).Msg("event")
						}
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "blive.toml", "path to the TOML config file")
	cmd.Flags().StringVar(&code, "code", "", "anchor identity code (overrides the config file)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log protocol traces")
	return cmd
}
