package stampede

// Metrics names.
const (
	MetricHit      = "cache_hit"
	MetricMiss     = "cache_miss"
	MetricExpired  = "cache_expired"
	MetricWrite    = "cache_write"
	MetricBuild    = "cache_build"
	MetricFailed   = "cache_failed_build"
	MetricStale    = "cache_stale_served"
	MetricLockBusy = "cache_lock_busy"
	MetricLockLost = "cache_lock_lost"
	MetricItems    = "cache_items"
)
