package pagination

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxPages bounds how many upstream pages Accumulate will request
const DefaultMaxPages = 10

// Reporter receives progress and informational messages while a tool
// runs. Interactive MCP sessions forward them to the client; stateless
// callers log them.
type Reporter interface {
	Progress(ctx context.Context, progress, total float64, message string)
	Info(ctx context.Context, message string)
}

// Batch is one upstream page. Next holds the upstream continuation
// parameters and is nil when the upstream has no further page.
type Batch[T any] struct {
	Items []T
	Next  Params
}

// FetchFunc retrieves the page that follows after. after is nil for the
// first page.
type FetchFunc[T any] func(ctx context.Context, after Params) (Batch[T], error)

// AccumulateOptions configures Accumulate
type AccumulateOptions[T any] struct {
	// Start is the continuation to begin from, nil for the first page
	Start Params

	// Target is the number of accepted items wanted. Accumulation stops
	// once more than Target items are held, so the caller can tell a full
	// page from an exhausted one.
	Target int

	// MaxPages caps upstream requests, DefaultMaxPages when zero
	MaxPages int

	// Keep filters items client-side; nil keeps everything
	Keep func(T) bool

	// Reporter receives one progress notification per page, may be nil
	Reporter Reporter

	// ExpectedPageDuration is used for the remaining-time hint in progress
	// messages, zero omits it
	ExpectedPageDuration time.Duration
}

// Accumulated is the outcome of Accumulate
type Accumulated[T any] struct {
	Items        []T
	PagesFetched int

	// HasMore is a heuristic: true when more than Target items were
	// gathered, or when the page ceiling stopped the loop while the last
	// page still produced accepted items and the upstream reported more.
	// It can claim more data exists when the remaining upstream pages are
	// entirely filtered out.
	HasMore bool
}

// Accumulate fetches upstream pages in order until more than Target items
// pass Keep, the upstream is exhausted, or MaxPages pages were fetched.
// Errors from fetch are returned unmodified.
func Accumulate[T any](ctx context.Context, fetch FetchFunc[T], opts AccumulateOptions[T]) (Accumulated[T], error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var (
		items            []T
		pages            int
		after            = opts.Start
		lastPageAccepted bool
		upstreamMore     bool
		started          = time.Now()
	)

	for pages < maxPages {
		batch, err := fetch(ctx, after)
		if err != nil {
			return Accumulated[T]{}, err
		}

		accepted := 0
		for _, item := range batch.Items {
			if opts.Keep == nil || opts.Keep(item) {
				items = append(items, item)
				accepted++
			}
		}
		pages++
		lastPageAccepted = accepted > 0
		upstreamMore = len(batch.Next) > 0

		if opts.Reporter != nil {
			opts.Reporter.Progress(ctx, float64(pages), float64(maxPages),
				progressMessage(pages, maxPages, len(items), time.Since(started), opts.ExpectedPageDuration))
		}

		if len(items) > opts.Target || !upstreamMore {
			break
		}
		after = batch.Next
	}

	hasMore := len(items) > opts.Target ||
		(pages >= maxPages && lastPageAccepted && upstreamMore)

	return Accumulated[T]{Items: items, PagesFetched: pages, HasMore: hasMore}, nil
}

func progressMessage(page, maxPages, collected int, elapsed, perPage time.Duration) string {
	msg := fmt.Sprintf("Fetched page %d of up to %d, %d items collected (elapsed %s", page, maxPages, collected, elapsed.Round(time.Millisecond))
	if perPage > 0 {
		msg += fmt.Sprintf(", expected up to %s", (perPage * time.Duration(maxPages)).Round(time.Second))
	}
	return msg + ")"
}
