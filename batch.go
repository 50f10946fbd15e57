package cinch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// BatchItem represents one file to compress in a batch operation.
type BatchItem struct {
	// Src is the input file path.
	Src string
	// Dst is the output file path.
	Dst string
	// Opts are the per-item compression options. If nil, BatchOptions.DefaultOpts is used.
	Opts *Options
}

// BatchResult holds the result for a single item in a batch.
type BatchResult struct {
	// Item is the original batch item.
	Item BatchItem
	// Result is the compression result (nil if Err is non-nil).
	Result *Result
	// Err is any error that occurred.
	Err error
	// Index is the position in the original input slice.
	Index int
}

// BatchOptions configures batch compression behavior.
type BatchOptions struct {
	// Workers is the number of concurrent workers. 0 = runtime.NumCPU().
	Workers int
	// DefaultOpts is used for any BatchItem where Opts is nil.
	DefaultOpts Options
	// OnItem is called after each item completes (for progress reporting).
	// It receives the number of items completed so far and the total count.
	OnItem func(completed, total int)
}

// CompressBatch fans a slice of files out across a bounded worker pool,
// each worker calling CompressFile through a CompressionOrchestrator.
// Results land back in input order regardless of completion order, so a
// caller can zip results against items positionally. Workers here are
// independent of — and typically larger than — the per-call
// ConcurrencyGate: the gate caps how many compressions are mid-encode at
// once across the whole process, while Workers just caps how many of
// *this* batch's items are in flight waiting on that gate.
//
// Canceling ctx stops new items from starting; items already inside
// CompressFile receive the same ctx and stop with its error at their next
// check of it.
//
// Example:
//
//	items := []cinch.BatchItem{
//	    {Src: "photo1.jpg", Dst: "out1.jpg"},
//	    {Src: "photo2.png", Dst: "out2.jpg"},
//	}
//	results := cinch.CompressBatch(ctx, items, cinch.BatchOptions{
//	    Workers: 4,
//	    DefaultOpts: cinch.DefaultOptions(),
//	})
func CompressBatch(ctx context.Context, items []BatchItem, batchOpts BatchOptions) []BatchResult {
	if len(items) == 0 {
		return nil
	}

	workers := batchOpts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]BatchResult, len(items))
	workCh := make(chan int, len(items))
	var wg sync.WaitGroup
	var progress batchProgress

	for i := range items {
		workCh <- i
	}
	close(workCh)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				results[idx] = runBatchItem(ctx, items[idx], idx, batchOpts.DefaultOpts)
				if batchOpts.OnItem != nil {
					batchOpts.OnItem(progress.tick(), len(items))
				}
			}
		}()
	}

	wg.Wait()
	return results
}

// runBatchItem compresses a single item, short-circuiting with ctx's error
// if the batch was canceled before this worker got to it.
func runBatchItem(ctx context.Context, item BatchItem, idx int, defaultOpts Options) BatchResult {
	select {
	case <-ctx.Done():
		return BatchResult{Item: item, Err: ctx.Err(), Index: idx}
	default:
	}

	opts := defaultOpts
	if item.Opts != nil {
		opts = *item.Opts
	}

	result, err := CompressFile(ctx, item.Src, item.Dst, opts)
	return BatchResult{Item: item, Result: result, Err: err, Index: idx}
}

// batchProgress is a mutex-guarded counter shared across worker goroutines
// so BatchOptions.OnItem sees a monotonically increasing completed count
// regardless of which worker finishes next.
type batchProgress struct {
	mu   sync.Mutex
	done int
}

func (p *batchProgress) tick() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	return p.done
}

// BatchSummary provides aggregate statistics for a batch operation.
type BatchSummary struct {
	Total      int
	Succeeded  int
	Failed     int
	TotalSaved int64
	AvgSSIM    float64
	// FailedSrcs lists the Src path of every failed item, in input order,
	// so a CLI can report which files need attention without re-scanning
	// the full BatchResult slice.
	FailedSrcs []string
}

// Summarize computes aggregate statistics from batch results.
func Summarize(results []BatchResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	var ssimSum float64
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			s.FailedSrcs = append(s.FailedSrcs, r.Item.Src)
			continue
		}
		s.Succeeded++
		if r.Result != nil {
			s.TotalSaved += r.Result.OriginalSize - r.Result.CompressedSize
			ssimSum += r.Result.EstimatedSSIM
		}
	}
	if s.Succeeded > 0 {
		s.AvgSSIM = ssimSum / float64(s.Succeeded)
	}
	return s
}

// String returns a human-readable batch summary.
func (s BatchSummary) String() string {
	return fmt.Sprintf(
		"Batch: %d/%d succeeded | %s saved | Avg SSIM: %.4f",
		s.Succeeded, s.Total, humanBytes(s.TotalSaved), s.AvgSSIM,
	)
}
