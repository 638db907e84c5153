package cron

import (
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine     *cron.Cron
	refreshJob cron.Job
	schedule   string
}

// NewCronManager schedule 为带秒的 cron 表达式，为空时不注册定时刷新
func NewCronManager(refreshJob cron.Job, schedule string) *Manager {
	return &Manager{
		engine:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DiscardLogger))),
		refreshJob: refreshJob,
		schedule:   schedule,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if s.schedule == "" {
		log.Warn("refresh schedule is empty, scheduled refresh disabled")
		return nil
	}
	if _, err := s.engine.AddJob(s.schedule, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.refreshJob)); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

// Stop 等待正在执行的任务结束
func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}

// Entries 已注册的任务数
func (s *Manager) Entries() int {
	return len(s.engine.Entries())
}
