package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/win_mon/internal/config"
	"github.com/eliteGoblin/focusd/win_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
	"github.com/eliteGoblin/focusd/win_mon/internal/infra"
	"github.com/eliteGoblin/focusd/win_mon/internal/policy"
	"github.com/eliteGoblin/focusd/win_mon/internal/usecase"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	rules := config.NewFileSource(resolveConfigPath())
	cfg, err := rules.Load()
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	username, err := dropPrivileges(cfg, logger)
	if err != nil {
		logger.Error("failed to switch user", zap.Error(err))
		return err
	}

	display := infra.DetectDisplay(username, cfg.Display, logger)
	os.Setenv("DISPLAY", display)

	source := infra.NewX11Source(display, cfg.QueryTimeout.Duration(), logger.Named("x11"))
	defer source.Close()

	checkDisplay(source, display, cfg.QueryTimeout.Duration(), logger)

	sessionID := uuid.NewString()
	pm := infra.NewProcessManager()

	var store domain.TerminationStore
	if cfg.RecordHistory {
		history, err := infra.OpenHistory(resolveDataDir(cfg))
		if err != nil {
			logger.Warn("termination history disabled", zap.Error(err))
		} else {
			defer history.Close()
			store = history
		}
	}

	enforcer := usecase.NewEnforcerWithStore(pm, store, usecase.EnforcerConfig{
		DryRun:    cfg.DryRun(),
		SessionID: sessionID,
	}, logger.Named("enforcer"))

	sweeper := usecase.NewSweeper(cfg.SweepInterval.Duration(), cfg.RecordsTTL.Duration(), rules, logger.Named("sweeper"))

	info := domain.DaemonStatus{
		PID:        pm.GetCurrentPID(),
		SessionID:  sessionID,
		StartedAt:  time.Now().UTC(),
		DryRun:     cfg.DryRun(),
		Display:    display,
		AppVersion: Version,
	}

	watcher := daemon.NewWatcher(
		daemon.WatcherConfig{
			PollInterval:      cfg.CheckInterval.Duration(),
			QueryTimeout:      cfg.QueryTimeout.Duration(),
			HeartbeatInterval: cfg.HeartbeatInterval.Duration(),
		},
		source,
		enforcer,
		sweeper,
		infra.NewActivityLog(logger.Named("activity")),
		infra.NewStatusFile(),
		policy.Compile(cfg.Rules),
		info,
		logger,
	)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// checkDisplay reports whether the display answers at startup. An unreachable
// display is not fatal: the poll loop treats it as no focused window until it
// comes up.
func checkDisplay(source domain.WindowSource, display string, timeout time.Duration, logger *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, _, err := source.ActiveWindow(ctx); err != nil {
		logger.Warn("cannot reach X display yet, will keep polling",
			zap.String("display", display), zap.Error(err))
		return false
	}
	return true
}

// dropPrivileges switches to USER when running as root and returns the login
// name used to pick the display session ("" when unknown).
func dropPrivileges(cfg *config.Config, logger *zap.Logger) (string, error) {
	account, err := infra.LookupAccount(cfg.User.Name, cfg.User.UID, cfg.User.IsUID)
	if err != nil {
		if os.Geteuid() == 0 {
			return "", fmt.Errorf("unknown USER %s: %w", cfg.User, err)
		}
		logger.Warn("unknown USER, matching any display session",
			zap.Stringer("user", cfg.User), zap.Error(err))
		return "", nil
	}

	switched, err := infra.SwitchUser(account)
	if err != nil {
		return "", err
	}
	if switched {
		logger.Info("dropped privileges",
			zap.String("user", account.Username),
			zap.Int("uid", account.UID),
			zap.Int("gid", account.GID))
	}
	return account.Username, nil
}

func createLogger(cfg *config.Config) *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	if cfg.LogFile != "" {
		zapConfig.OutputPaths = []string{cfg.LogFile}
	} else {
		zapConfig.OutputPaths = []string{"stderr"}
	}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	zapConfig.EncoderConfig.TimeKey = "time"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.Sampling = nil
	if cfg.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
