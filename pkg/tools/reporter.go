package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/pagination"
)

// NopReporter discards progress
type NopReporter struct{}

func (NopReporter) Progress(context.Context, float64, float64, string) {}
func (NopReporter) Info(context.Context, string)                       {}

// LogReporter writes progress to the log. Stateless REST calls use it
// since they have no channel to stream notifications on.
type LogReporter struct {
	Logger logging.Logger
}

func (r LogReporter) Progress(ctx context.Context, progress, total float64, message string) {
	r.Logger.WithContext(ctx).Debug("tool progress",
		logging.Any("progress", progress),
		logging.Any("total", total),
		logging.String("message", message),
	)
}

func (r LogReporter) Info(ctx context.Context, message string) {
	r.Logger.WithContext(ctx).Info(message)
}

// withPeriodicProgress runs fn and, while it is in flight, reports
// progress every interval. Reported progress moves from start towards end
// proportionally to elapsed/expected and never reaches end until fn
// returns, at which point end is reported once.
func withPeriodicProgress(ctx context.Context, rep pagination.Reporter, interval, expected time.Duration,
	start, end, total float64, label string, fn func(context.Context) error) error {

	if interval <= 0 {
		err := fn(ctx)
		if err == nil {
			rep.Progress(ctx, end, total, label+" completed")
		}
		return err
	}
	if expected <= 0 {
		expected = interval
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	began := time.Now()
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed := time.Since(began)
				frac := float64(elapsed) / float64(expected)
				if frac > 0.95 {
					frac = 0.95
				}
				rep.Progress(ctx, start+(end-start)*frac, total,
					fmt.Sprintf("%s in progress (%s elapsed, expected up to %s)",
						label, elapsed.Round(time.Second), expected.Round(time.Second)))
			}
		}
	}()

	err := fn(ctx)
	close(done)
	<-stopped

	if err == nil {
		rep.Progress(ctx, end, total, label+" completed")
	}
	return err
}
