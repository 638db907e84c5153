package service

import (
	"Tracklight/internal/pkg/util"
	"time"
)

// CooldownDecision 拒绝时 RetryAfterMinutes 为向上取整的剩余分钟数
type CooldownDecision struct {
	Allowed           bool
	RetryAfterMinutes int
}

// CheckCooldown 冷却状态完全由实体自身的 lastMetricsUpdate 推导；特权调用和零窗口直接放行
func CheckCooldown(lastUpdate *time.Time, window time.Duration, privileged bool, now time.Time) CooldownDecision {
	if privileged || window <= 0 || lastUpdate == nil {
		return CooldownDecision{Allowed: true}
	}

	elapsed := now.Sub(*lastUpdate)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= window {
		return CooldownDecision{Allowed: true}
	}
	return CooldownDecision{RetryAfterMinutes: util.CeilMinutes(window - elapsed)}
}
