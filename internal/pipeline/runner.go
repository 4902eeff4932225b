package pipeline

import (
	"sync"

	"github.com/ajitpratap0/tabular/pkg/materialize"
)

// chunkRunner splits a pass across a fixed worker count and joins before
// returning. Small inputs run inline; the goroutine fan-out only pays off
// past a minimum chunk size.
type chunkRunner struct {
	workers  int
	minChunk int
}

// NewRunner returns a pass runner with the given parallelism. workers and
// minChunk must be positive.
func NewRunner(workers, minChunk int) materialize.Runner {
	if workers < 1 {
		workers = 1
	}
	if minChunk < 1 {
		minChunk = 1
	}
	return &chunkRunner{workers: workers, minChunk: minChunk}
}

func (r *chunkRunner) ForEach(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk := (n + r.workers - 1) / r.workers
	if chunk < r.minChunk {
		chunk = r.minChunk
	}
	if chunk >= n {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
