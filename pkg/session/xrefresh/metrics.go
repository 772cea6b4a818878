package xrefresh

const (
	// MetricsComponent 组件名称。
	MetricsComponent = "xrefresh"

	MetricsOpRefresh = "Refresh"

	MetricsAttrOutcome = "refresh.outcome"
)
