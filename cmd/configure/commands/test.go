package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ansonkao/time-tracker/internal/config"
	"github.com/ansonkao/time-tracker/internal/googlecal"
	"github.com/ansonkao/time-tracker/internal/store"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	var accessToken string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test backing service connectivity",
		Long:  "Test that Redis is reachable, and optionally that the calendar upstream accepts a Google access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Printf("Testing Redis connection: %s\n", cfg.RedisURL)
			kv, err := store.NewRedisKV(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			defer func() {
				if err := kv.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close redis client: %v\n", err)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kv.Ping(ctx); err != nil {
				return fmt.Errorf("redis ping failed: %w", err)
			}
			fmt.Println("✓ Redis is reachable")

			if accessToken != "" {
				fmt.Println("\nTesting calendar upstream")
				cred := googlecal.NewTokenSourceCredential(
					oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
				)
				token, err := cred.Token(ctx)
				if err != nil {
					return fmt.Errorf("failed to resolve calendar credential: %w", err)
				}

				opts := []googlecal.Option{}
				if cfg.CalendarBaseURL != "" {
					opts = append(opts, googlecal.WithBaseURL(cfg.CalendarBaseURL))
				}
				client := googlecal.NewClient(zap.NewNop(), opts...)
				calendars, err := client.ListCalendars(ctx, token)
				if err != nil {
					return fmt.Errorf("calendar list failed: %w", err)
				}
				fmt.Printf("✓ Calendar upstream is reachable (%d calendars)\n", len(calendars))
			}

			fmt.Println("\n✓ Connectivity test passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&accessToken, "access-token", "", "Google access token to probe the calendar upstream with (optional)")

	return cmd
}
