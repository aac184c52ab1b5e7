package calcwkr

import (
	"time"

	"github.com/riftstats/backend-next/internal/pkg/observability"
)

func observeCalcDuration(service string, f func() error) error {
	start := time.Now()
	defer func() {
		dur := time.Since(start)
		observability.WorkerCalcDuration.WithLabelValues(service).Set(dur.Seconds())
	}()
	return f()
}
