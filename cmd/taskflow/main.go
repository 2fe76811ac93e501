package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/kmayer/taskflow/internal/config"
	"github.com/kmayer/taskflow/internal/mailbox"
	"github.com/kmayer/taskflow/internal/notify"
	"github.com/kmayer/taskflow/internal/rules"
	"github.com/kmayer/taskflow/internal/scan"
	"github.com/kmayer/taskflow/internal/store"
	"github.com/kmayer/taskflow/internal/tasks"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config file")
	scanOnce := flag.Bool("scan-now", false, "run one scan immediately and exit")
	scanAll := flag.Bool("scan-all", false, "with -scan-now, scan the whole mailbox instead of unseen")
	sinceDays := flag.Int("since-days", 0, "with -scan-now, scan messages from the past N days")
	testConn := flag.Bool("test-connection", false, "verify the IMAP credentials and exit")
	setStatus := flag.String("set-status", "", "update a task's status as taskID=status and exit")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer st.Close()

	ruleSource := rules.NewSource(st)
	notifier := notify.NewTelegram(cfg.Telegram, st, logger)
	scanner := scan.NewScanner(st, ruleSource, mailbox.NewClient(),
		scan.NewTitleThreadMatcher(st), cfg, logger)
	scheduler := scan.NewScheduler(scanner, notifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *testConn {
		ok, message := scanner.TestConnection(ctx)
		logger.Info("connection test", zap.Bool("ok", ok), zap.String("message", message))
		if !ok {
			os.Exit(1)
		}
		return
	}

	if *setStatus != "" {
		id, status, found := strings.Cut(*setStatus, "=")
		if !found || id == "" || status == "" {
			logger.Fatal("invalid -set-status value, expected taskID=status",
				zap.String("value", *setStatus))
		}
		svc := tasks.NewService(st, notifier, logger)
		task, err := svc.UpdateStatus(ctx, id, status)
		if err != nil {
			logger.Fatal("updating task status", zap.Error(err))
		}
		logger.Info("task status updated",
			zap.String("task_id", task.ID), zap.String("status", task.Status))
		return
	}

	if *scanOnce {
		mode := mailbox.Unseen()
		switch {
		case *sinceDays > 0:
			mode = mailbox.SinceDays(*sinceDays)
		case *scanAll:
			mode = mailbox.All()
		}

		result := scheduler.TriggerNow(ctx, mode)
		logger.Info("scan result", zap.String("message", result.Message))
		if !result.Success {
			os.Exit(1)
		}
		return
	}

	scheduler.Start(resolveInterval(ctx, st, cfg, logger))
	defer scheduler.Stop()

	<-ctx.Done()
	logger.Info("shutting down")
}

// resolveInterval applies the settings-over-config precedence for the
// scan interval.
func resolveInterval(ctx context.Context, st store.Store, cfg *config.AppConfig, logger *zap.Logger) int {
	interval := cfg.Scan.IntervalMinutes

	if v, ok, err := st.GetSetting(ctx, config.SettingScanInterval); err == nil && ok {
		if minutes, perr := strconv.Atoi(v); perr == nil && minutes >= 1 {
			interval = minutes
		} else {
			logger.Warn("ignoring invalid scan interval setting",
				zap.String("value", v))
		}
	}

	return interval
}
