package annotate

import (
	"context"
	"runtime"
	"sync"
)

// WorkItem holds the lookup key of one table row.
type WorkItem struct {
	Seq   int
	Chrom string
	Start string
	Ref   string
	Alt   string
}

// WorkResult holds the lookup outcome for a single row.
type WorkResult struct {
	Seq     int
	Item    WorkItem
	AF      float64
	Matched bool
	Err     error
}

func (a *Annotator) poolSize() int {
	if a.workers <= 0 {
		return runtime.NumCPU()
	}
	return a.workers
}

// ParallelAnnotate looks up work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (a *Annotator) ParallelAnnotate(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for item := range items {
				af, ok, err := a.lookupRow(ctx, item)
				results <- WorkResult{
					Seq:     item.Seq,
					Item:    item,
					AF:      af,
					Matched: ok,
					Err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
