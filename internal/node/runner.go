package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Operation produces the records for one item.
type Operation func(ctx context.Context, item Item) ([]Record, error)

// ItemError is a fatal error for one item.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Runner applies an operation to items one at a time, in order.
type Runner struct {
	// ContinueOnFail turns a failed item into an error record instead of
	// halting the batch.
	ContinueOnFail bool
	// OnError is called for every failed item, halting or not.
	OnError func(item Item, err error)

	limiter *rate.Limiter
}

// NewRunner creates a runner that starts items at least delay apart.
func NewRunner(continueOnFail bool, delay time.Duration) *Runner {
	r := &Runner{ContinueOnFail: continueOnFail}
	if delay > 0 {
		r.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return r
}

// Run processes items sequentially. On a halting failure it returns the
// records produced so far together with an *ItemError.
func (r *Runner) Run(ctx context.Context, items []Item, op Operation) ([]Record, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run", runID).Logger()
	logger.Debug().Int("items", len(items)).Bool("continue_on_fail", r.ContinueOnFail).Msg("run started")

	var out []Record
	failed := 0
	for _, item := range items {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return out, &ItemError{Index: item.Index, Err: err}
			}
		}
		if err := ctx.Err(); err != nil {
			return out, &ItemError{Index: item.Index, Err: err}
		}

		start := time.Now()
		records, err := op(ctx, item)
		if err != nil {
			failed++
			logger.Error().Err(err).Int("item", item.Index).Msg("item failed")
			if r.OnError != nil {
				r.OnError(item, err)
			}
			if !r.ContinueOnFail || errors.Is(err, context.Canceled) {
				return out, &ItemError{Index: item.Index, Err: err}
			}
			out = append(out, ErrorRecord(item, err))
			continue
		}

		if len(records) == 0 {
			logger.Warn().Int("item", item.Index).Msg("no records produced")
		}
		logger.Debug().Int("item", item.Index).Int("records", len(records)).Dur("elapsed", time.Since(start)).Msg("item done")
		out = append(out, records...)
	}

	logger.Debug().Int("records", len(out)).Int("failed", failed).Msg("run finished")
	return out, nil
}

// ErrorRecord is the single record emitted for a failed item.
func ErrorRecord(item Item, err error) Record {
	return Record{
		JSON:       map[string]any{"error": err.Error()},
		PairedItem: item.Index,
		Error:      err.Error(),
	}
}
