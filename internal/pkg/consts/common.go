package consts

// 刷新触发来源，同时作为监控标签
const (
	TriggerInteractive = "interactive"
	TriggerCampaign    = "campaign"
	TriggerCron        = "cron"
	TriggerScheduled   = "scheduled"
)

// 分析接口支持的统计周期
const (
	Period7d   = "7d"
	Period14d  = "14d"
	Period30d  = "30d"
	Period90d  = "90d"
	Period365d = "365d"
)

// AnalyticsPeriods 刷新后需要一起失效的全部周期
var AnalyticsPeriods = []string{Period7d, Period14d, Period30d, Period90d, Period365d}

const (
	HeaderCronSecret = "X-Cron-Secret"
)
