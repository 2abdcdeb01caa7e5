package metrics

// Metric names
const (
	MetricNameOperationsTotal      = "economy_operations_total"
	MetricNameOperationDuration    = "economy_operation_duration_seconds"
	MetricNameOperationRetries     = "economy_operation_retries_total"
	MetricNameCacheHits            = "entity_cache_hits_total"
	MetricNameCacheMisses          = "entity_cache_misses_total"
	MetricNameLockWaitSeconds      = "lock_wait_seconds"
	MetricNameDropRollsTotal       = "drop_rolls_total"
)

// Metric help text
const (
	HelpTextOperationsTotal   = "Total economic operations by operation and outcome"
	HelpTextOperationDuration = "Economic operation latency in seconds"
	HelpTextOperationRetries  = "Commit retries caused by transient store conflicts"
	HelpTextCacheHits         = "Entity cache hits by entity kind"
	HelpTextCacheMisses       = "Entity cache misses by entity kind"
	HelpTextLockWaitSeconds   = "Time spent waiting to acquire entity locks"
	HelpTextDropRollsTotal    = "Weighted drop rolls resolved by table"
)

// Label names
const (
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelKind      = "kind"
	LabelTable     = "table"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)
