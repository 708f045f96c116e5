package node

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/crawlnode/internal/strategy"
)

func itemsN(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{Index: i, JSON: map[string]any{}}
	}
	return items
}

// failOn returns an operation that fails for the given index and emits one
// record otherwise.
func failOn(bad int, calls *[]int) Operation {
	return func(ctx context.Context, item Item) ([]Record, error) {
		*calls = append(*calls, item.Index)
		if item.Index == bad {
			return nil, strategy.Configf("url", "URL cannot be empty")
		}
		return []Record{{JSON: map[string]any{"n": item.Index}, PairedItem: item.Index}}, nil
	}
}

func TestRunner_HaltsOnFailure(t *testing.T) {
	var calls []int
	var reported []int
	r := NewRunner(false, 0)
	r.OnError = func(item Item, err error) { reported = append(reported, item.Index) }

	records, err := r.Run(context.Background(), itemsN(3), failOn(1, &calls))
	require.Error(t, err)

	var itemErr *ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.True(t, errors.Is(err, strategy.ErrConfig))

	assert.Equal(t, []int{0, 1}, calls, "items after the failure are not processed")
	assert.Equal(t, []int{1}, reported)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].PairedItem)
}

func TestRunner_ContinueOnFail(t *testing.T) {
	var calls []int
	records, err := NewRunner(true, 0).Run(context.Background(), itemsN(3), failOn(1, &calls))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, calls)
	require.Len(t, records, 3)
	assert.Equal(t, 1, records[1].PairedItem)
	assert.True(t, strings.Contains(records[1].Error, "URL cannot be empty"))
	assert.Equal(t, records[1].Error, records[1].JSON["error"])
	assert.Empty(t, records[2].Error)
}

func TestRunner_MultipleRecordsPerItem(t *testing.T) {
	op := func(ctx context.Context, item Item) ([]Record, error) {
		return []Record{{PairedItem: item.Index}, {PairedItem: item.Index}}, nil
	}
	records, err := NewRunner(false, 0).Run(context.Background(), itemsN(2), op)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []int{0, 0, 1, 1}, []int{records[0].PairedItem, records[1].PairedItem, records[2].PairedItem, records[3].PairedItem})
}

func TestRunner_Pacing(t *testing.T) {
	var starts []time.Time
	op := func(ctx context.Context, item Item) ([]Record, error) {
		starts = append(starts, time.Now())
		return nil, nil
	}
	_, err := NewRunner(false, 40*time.Millisecond).Run(context.Background(), itemsN(3), op)
	require.NoError(t, err)
	require.Len(t, starts, 3)
	assert.GreaterOrEqual(t, starts[2].Sub(starts[0]), 70*time.Millisecond)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []int
	_, err := NewRunner(true, 0).Run(ctx, itemsN(2), failOn(-1, &calls))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, calls)
}
