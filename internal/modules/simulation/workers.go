package simulation

import "sync"

// batchSize is the number of iterations handed to a worker at a time.
const batchSize = 256

// batchPool runs a function over contiguous index ranges on a fixed number of
// goroutines. Each range is processed by exactly one worker, so callers that
// write only inside their own range need no locking.
type batchPool struct {
	numWorkers int
}

func newBatchPool(numWorkers int) *batchPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &batchPool{numWorkers: numWorkers}
}

type batch struct {
	start, end int
}

// run splits [0, total) into batches of size and blocks until fn has been
// called for every batch.
func (p *batchPool) run(total, size int, fn func(start, end int)) {
	if total <= 0 {
		return
	}
	if size <= 0 {
		size = batchSize
	}

	numBatches := (total + size - 1) / size
	jobs := make(chan batch, numBatches)
	for start := 0; start < total; start += size {
		jobs <- batch{start: start, end: min(start+size, total)}
	}
	close(jobs)

	numActualWorkers := min(p.numWorkers, numBatches)

	var wg sync.WaitGroup
	for range numActualWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				fn(job.start, job.end)
			}
		}()
	}
	wg.Wait()
}
