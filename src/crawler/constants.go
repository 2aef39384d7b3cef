package crawler

import "time"

// Operational constants frozen by spec §6. These are not exposed as
// Config knobs: they are the engine's fixed cadence and are not meant to
// be tuned per crawl.
const (
	StaleWorkerThreshold   = 60 * time.Second
	HealthCheckInterval    = 15 * time.Second
	MemoryThresholdBytes   = 1 << 30 // 1 GiB
	QueueSizeThreshold     = 10000
	TaskAcquisitionTimeout = 10 * time.Second
	FetchTimeout           = 45 * time.Second
	FetchRetryCount        = 2
	FailureDetectorInterval = 30 * time.Second

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	robotsFetchTimeout = 10 * time.Second
	robotsMaxRetries   = 1
)
