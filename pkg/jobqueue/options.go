package jobqueue

import (
	"time"

	"github.com/sirupsen/logrus"
)

type WatcherOptions struct {
	WorkerID     string
	PollInterval time.Duration
	BatchSize    int
	JobTimeout   time.Duration
	SingleActive bool
	MaxBackoff   time.Duration

	ObserveQueueDepthEvery time.Duration

	Logger *logrus.Entry
}

func (o *WatcherOptions) setDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = 1 * time.Second
	}
	if o.BatchSize == 0 {
		o.BatchSize = 10
	}
	if o.JobTimeout == 0 {
		o.JobTimeout = 5 * time.Minute
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.ObserveQueueDepthEvery == 0 {
		o.ObserveQueueDepthEvery = 10 * time.Second
	}
}
