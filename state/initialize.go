package state

import (
	"time"

	"epub2pdf/metrics"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:   time.Now(),
		Metrics: metrics.New(),
	}
}
