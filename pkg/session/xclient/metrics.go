package xclient

const (
	// MetricsComponent 组件名称。
	MetricsComponent = "xclient"

	MetricsOpRequest = "Request"
	MetricsOpRefresh = "RefreshCall"
	MetricsOpProbe   = "Probe"

	MetricsAttrHTTPMethod = "http.method"
	MetricsAttrHTTPPath   = "http.path"
	MetricsAttrHTTPStatus = "http.status_code"
	MetricsAttrResult     = "xclient.result"
	MetricsAttrRetried    = "xclient.retried"
	MetricsAttrDedupKey   = "xclient.dedup_key"
)
