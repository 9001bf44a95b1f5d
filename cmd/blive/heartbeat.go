package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blivekit/blive/openapi"
)

// heartbeatCmd sends one heartbeat for an explicit game id. Useful when
// checking credentials and clock skew against the platform without
// joining an event stream.
func heartbeatCmd() *cobra.Command {
	var (
		configPath string
		gameID     string
	)
	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Send a single app heartbeat for a game id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			var apiOpts []openapi.ClientOption
			if cfg.APIBaseURL != "" {
				apiOpts = append(apiOpts, openapi.WithBaseURL(cfg.APIBaseURL))
			}
			api := openapi.NewClient(cfg.AccessKeyID, cfg.AccessKeySecret, cfg.AppID, apiOpts...)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := api.Heartbeat(ctx, gameID); err != nil {
				return err
			}
			out, _ := json.Marshal(map[string]string{"game_id": gameID, "status": "ok"})
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "blive.toml", "path to the TOML config file")
	cmd.Flags().StringVar(&gameID, "game-id", "", "app session id to heartbeat")
	cmd.MarkFlagRequired("game-id")
	return cmd
}
