package exporter

import "time"

const (
	defaultBulkThreshold = 5
	defaultFlushInterval = time.Second

	defaultResubscribeDelay = 5 * time.Second
	maxResubscribeDelay     = time.Minute
	blockFetchTries         = 5
	headLookupTries         = 10
	blockChannelSize        = 64

	unhealthyFlushFailures = 3

	// ComponentWatcher and ComponentFlusher name the health statuses the service reports.
	ComponentWatcher = "watcher"
	ComponentFlusher = "flusher"
)
