package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chanmirror/internal/config"
	"github.com/nextlevelbuilder/chanmirror/internal/events"
	"github.com/nextlevelbuilder/chanmirror/internal/httpapi"
	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
	"github.com/nextlevelbuilder/chanmirror/internal/store"
	"github.com/nextlevelbuilder/chanmirror/internal/store/file"
	"github.com/nextlevelbuilder/chanmirror/internal/store/pg"
	"github.com/nextlevelbuilder/chanmirror/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mirror orchestration core and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.Load()
	setupLogging(verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.TelemetryEnabled,
		Endpoint:    cfg.TelemetryEndpoint,
		ServiceName: cfg.TelemetryServiceName,
	})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer shutdownTracing(context.Background())

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	snap, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	registry := mirror.NewRegistry(cfg.SessionsDir(), cfg.SessRescan())
	pollers := mirror.NewPollerTable()
	jobs := mirror.NewJobTable()
	rings := mirror.NewRecentRings()
	pollers.Replace(snap.Pollers)
	jobs.Replace(snap.Jobs)
	rings.Replace(mergeRings(snap.RecentBySession, snap.RecentByBot))

	bus := events.NewBus()
	alerts, err := mirror.NewAlertSink(cfg.AlertBotToken, cfg.AlertChatIDInt(), cfg.AlertTopicIDInt(), 30*time.Second, bus)
	if err != nil {
		return fmt.Errorf("alert sink: %w", err)
	}

	joinGov := mirror.NewJoinGovernor(cfg.JoinInterval(), cfg.JoinJitter())
	failover := mirror.NewFailoverController(registry, pollers, alerts)
	health := mirror.NewHealthMonitor(registry, cfg.HealthcheckInterval())
	republisher := mirror.NewRepublisher(registry, joinGov, alerts, cfg.IncludeMedia, cfg.MediaMaxBytes(), "t.me")
	pollLoop := mirror.NewPollLoop(registry, pollers, jobs, joinGov, failover, republisher, rings, cfg.PollTick(), cfg.IdleJitter(), cfg.BatchMax)

	core := mirror.NewCore(registry, pollers, jobs, rings, health)

	pollLoop.OnProgress(func() {
		go persistSnapshot(context.Background(), st, registry, pollers, jobs, rings, health)
	})

	go registry.Run(ctx)
	go health.Run(ctx)
	go pollLoop.Run(ctx)

	srv := httpapi.NewServer(&coreAdapter{core: core}, cfg.APIBearer, bus)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr(),
		Handler: srv,
	}

	go func() {
		slog.Info("chanmirror: http server listening", "addr", cfg.BindAddr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("chanmirror: http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("chanmirror: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	persistSnapshot(shutdownCtx, st, registry, pollers, jobs, rings, health)
	return nil
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DBMode == "postgres" {
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("DB_MODE=postgres requires POSTGRES_DSN")
		}
		if err := pg.Migrate(cfg.PostgresDSN); err != nil {
			return nil, err
		}
		return pg.New(cfg.PostgresDSN)
	}
	return file.New(cfg.StatePath()), nil
}

func mergeRings(bySession, byBot map[string][]mirror.RecentPublish) map[string][]mirror.RecentPublish {
	out := make(map[string][]mirror.RecentPublish, len(bySession)+len(byBot))
	for k, v := range bySession {
		out["user:"+k] = v
	}
	for k, v := range byBot {
		out["bot:"+k] = v
	}
	return out
}

func persistSnapshot(ctx context.Context, st store.Store, registry *mirror.Registry, pollers *mirror.PollerTable, jobs *mirror.JobTable, rings *mirror.RecentRings, health *mirror.HealthMonitor) {
	// Ring keys are "user:<session>" / "bot:<fingerprint>"; strip the prefix
	// so mergeRings can restore them on the next load.
	bySession := map[string][]mirror.RecentPublish{}
	byBot := map[string][]mirror.RecentPublish{}
	for k, v := range rings.Snapshot() {
		if name, ok := strings.CutPrefix(k, "bot:"); ok {
			byBot[name] = v
		} else {
			bySession[strings.TrimPrefix(k, "user:")] = v
		}
	}
	snap := &store.Snapshot{
		Pollers:         pollers.Snapshot(),
		Jobs:            jobs.Snapshot(),
		RecentBySession: bySession,
		RecentByBot:     byBot,
		DeadSessions:    health.DeadSessions(),
		SavedAt:         time.Now(),
	}
	if err := st.Save(ctx, snap); err != nil {
		slog.Warn("chanmirror: snapshot save failed", "error", err)
	}
}
