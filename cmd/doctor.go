package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chanmirror/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("chanmirror doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfg := config.Load()

	fmt.Println("  State:")
	fmt.Printf("    %-20s %s\n", "State dir:", cfg.StateDir)
	if _, err := os.Stat(cfg.SessionsDir()); err != nil {
		fmt.Printf("    %-20s NOT FOUND (created on first run)\n", "Sessions dir:")
	} else {
		fmt.Printf("    %-20s OK\n", "Sessions dir:")
	}

	fmt.Println()
	fmt.Println("  Persistence:")
	fmt.Printf("    %-20s %s\n", "Mode:", cfg.DBMode)
	if cfg.DBMode == "postgres" {
		if cfg.PostgresDSN == "" {
			fmt.Printf("    %-20s MISSING (POSTGRES_DSN not set)\n", "DSN:")
		} else {
			db, err := sql.Open("pgx", cfg.PostgresDSN)
			if err != nil {
				fmt.Printf("    %-20s CONNECT FAILED (%s)\n", "Status:", err)
			} else {
				defer db.Close()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := db.PingContext(ctx); err != nil {
					fmt.Printf("    %-20s CONNECT FAILED (%s)\n", "Status:", err)
				} else {
					fmt.Printf("    %-20s OK\n", "Status:")
				}
			}
		}
	}

	fmt.Println()
	fmt.Println("  Alerting:")
	if cfg.AlertBotToken == "" {
		fmt.Printf("    %-20s (not configured)\n", "Bot token:")
	} else {
		fmt.Printf("    %-20s configured\n", "Bot token:")
	}
	fmt.Printf("    %-20s %s\n", "Chat ID:", valueOrNone(cfg.AlertChatID))

	fmt.Println()
	fmt.Println("  HTTP API:")
	fmt.Printf("    %-20s %s\n", "Bind address:", cfg.BindAddr())
	if cfg.APIBearer == "" {
		fmt.Printf("    %-20s UNPROTECTED (API_BEARER not set)\n", "Auth:")
	} else {
		fmt.Printf("    %-20s bearer token required\n", "Auth:")
	}

	fmt.Println()
	fmt.Println("  Telemetry:")
	fmt.Printf("    %-20s %v\n", "Enabled:", cfg.TelemetryEnabled)
	if cfg.TelemetryEnabled {
		fmt.Printf("    %-20s %s\n", "Endpoint:", valueOrNone(cfg.TelemetryEndpoint))
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func valueOrNone(v string) string {
	if v == "" {
		return "(not configured)"
	}
	return v
}
