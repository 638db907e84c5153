package consts

const (
	EntityAnalyticsKey = "metrics:analytics:" // + entity_id + ":v" + metrics_version + ":" + period
)

const (
	ScheduledRefreshLock = "lock:metrics:scheduled-refresh"
)
