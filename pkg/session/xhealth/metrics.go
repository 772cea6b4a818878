package xhealth

const (
	// MetricsComponent 组件名称。
	MetricsComponent = "xhealth"

	MetricsOpProbe       = "Probe"
	MetricsOpForceLogout = "ForceLogout"

	MetricsAttrReason      = "health.reason"
	MetricsAttrProbeResult = "health.probe_result"
	MetricsAttrThrottled   = "health.throttled"
)
