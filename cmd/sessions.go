package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chanmirror/internal/config"
	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage session files without starting the server",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsUploadCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known sessions and their liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			registry := mirror.NewRegistry(cfg.SessionsDir(), cfg.SessRescan())

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			registry.RunOnce(ctx)

			for _, s := range registry.ListSnapshot() {
				status := "offline"
				if s.Online {
					status = "online"
				}
				fmt.Printf("%-4d %-24s %-8s %s\n", s.Index, s.Name, status, s.LastError)
			}
			return nil
		},
	}
}

func sessionsUploadCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "upload <name>",
		Short: "Install a new session file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			cfg := config.Load()
			registry := mirror.NewRegistry(cfg.SessionsDir(), cfg.SessRescan())
			if err := registry.Upload(context.Background(), args[0], token); err != nil {
				return err
			}
			fmt.Printf("uploaded session %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bot token for this session")
	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a session and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			registry := mirror.NewRegistry(cfg.SessionsDir(), cfg.SessRescan())

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			registry.RunOnce(ctx)

			if err := registry.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted session %q\n", args[0])
			return nil
		},
	}
}
