package cron

import (
	"fmt"
	log "log/slog"
)

// InitCron 注册并启动；没有任何任务时不启动引擎
func InitCron(mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}
	if mgr.Entries() == 0 {
		log.Warn("no cron job registered, engine not started")
		return nil
	}
	mgr.Start()
	log.Info("Cron Jobs started", "entries", mgr.Entries(), "schedule", mgr.schedule)
	return nil
}
