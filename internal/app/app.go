package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"flipwatch/internal/alerting"
	"flipwatch/internal/analyzer"
	"flipwatch/internal/config"
	"flipwatch/internal/detect"
	"flipwatch/internal/orchestrator"
	"flipwatch/internal/scoring"
	"flipwatch/internal/source"
	"flipwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newLoader() source.Loader {
	return source.NewSimulated(a.Config.Source.Seed, a.Config.Source.Regions)
}

func (a *App) newEngine(strategy string) (*scoring.Engine, error) {
	profile, err := a.Config.ResolveStrategy(strategy)
	if err != nil {
		return nil, err
	}
	return scoring.NewEngine(profile, scoring.NormMethod(a.Config.Scoring.Normalization), a.Config.Scoring.Workers)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	notifiers := make([]alerting.Notifier, 0, len(a.Config.Alerting.Channels))
	for _, channel := range a.Config.Alerting.Channels {
		switch channel {
		case alerting.ChannelLog:
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		case alerting.ChannelTelegram:
			cfg := a.Config.Alerting.Telegram
			notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
		}
	}
	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	default:
		return alerting.NewFanout(notifiers...)
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// RunOptions hold CLI overrides for a simulation run.
type RunOptions struct {
	Steps    int
	FromStep int
	Strategy string
}

// Run executes the orchestration loop over the configured number of steps.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	engine, err := a.newEngine(opts.Strategy)
	if err != nil {
		return err
	}

	steps := a.Config.Simulation.Steps
	if opts.Steps > 0 {
		steps = opts.Steps
	}

	startPeriod, err := a.Config.StartPeriod(time.Now())
	if err != nil {
		return err
	}

	deps := orchestrator.Deps{
		Loader:   a.newLoader(),
		Engine:   engine,
		Detector: detect.New(a.Config.DetectionThresholds()),
		Alerts:   alerting.NewEngine(a.Config.AlertThresholds(), engine.Profile(), a.Logger),
		Analyzer: analyzer.New(a.Config.AlertThresholds()),
		Notifier: a.newNotifier(),
	}
	if store != nil {
		deps.ScoreStore = store
		deps.AlertStore = store
		deps.ReportStore = store
		deps.Locker = store
	}

	orch := orchestrator.New(deps, a.Config.Analysis.TopK, a.Logger)

	a.Logger.Info().
		Str("strategy", engine.Profile().Name).
		Str("start", startPeriod.String()).
		Int("steps", steps).
		Msg("starting simulation run")

	summary, err := orch.Run(ctx, orchestrator.NewState(), orchestrator.Options{
		StartPeriod: startPeriod,
		Steps:       steps,
		FromStep:    opts.FromStep,
		LockKey:     a.Config.Simulation.AdvisoryLockKey,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("run terminated with error")
		return err
	}

	if summary != nil {
		a.Logger.Info().
			Str("run_id", summary.RunID).
			Int("completed", summary.StepsCompleted).
			Int("skipped", summary.StepsSkipped).
			Int("hot", summary.AlertsByTier[alerting.TierHot]).
			Int("warm", summary.AlertsByTier[alerting.TierWarm]).
			Int("watch", summary.AlertsByTier[alerting.TierWatch]).
			Msg("simulation run finished")
	}
	return nil
}
