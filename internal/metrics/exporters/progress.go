package exporters

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/metrics"
)

// ProgressReporter periodically logs the progress of running jobs.
type ProgressReporter struct {
	logger   logging.Logger
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewProgressReporter creates a reporter that logs every interval.
func NewProgressReporter(logger logging.Logger, interval time.Duration) *ProgressReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ProgressReporter{logger: logger, interval: interval}
}

// Start begins the report loop.
func (r *ProgressReporter) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run()
}

// Stop stops the reporter and waits for the goroutine to finish.
func (r *ProgressReporter) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *ProgressReporter) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *ProgressReporter) report() {
	all := metrics.GetAllJobMetrics()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := all[id]
		r.logger.Info("Encoding",
			"job", id,
			"pass", m.Pass,
			"passes", m.Passes,
			"percent", m.Percent,
			"fps", m.FPS,
			"speed", m.Speed,
			"eta", time.Duration(m.ETA*float64(time.Second)).Round(time.Second).String())
	}
}
