package parallel

import (
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// Mapper runs fn once for every index in [0, n) and returns when all calls
// have finished. Implementations may call fn concurrently, so fn must only
// write to state owned by its index.
type Mapper interface {
	Map(n int, fn func(i int))
	Workers() int
}

// Sequential runs every index in order on the calling goroutine.
type Sequential struct{}

func (Sequential) Map(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		fn(i)
	}
}

func (Sequential) Workers() int { return 1 }

// Pool schedules one task per index on a bounded goroutine pool.
// MaxGoroutines <= 0 means runtime.NumCPU().
type Pool struct {
	MaxGoroutines int
}

func (p Pool) Workers() int {
	if p.MaxGoroutines <= 0 {
		return runtime.NumCPU()
	}
	return p.MaxGoroutines
}

func (p Pool) Map(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	wp := pool.New().WithMaxGoroutines(p.Workers())
	for i := 0; i < n; i++ {
		i := i
		wp.Go(func() { fn(i) })
	}
	wp.Wait()
}

// Chunked splits [0, n) into one contiguous range per worker. Below
// Threshold items everything runs on the calling goroutine.
type Chunked struct {
	Threshold int
}

func (c Chunked) Workers() int { return runtime.NumCPU() }

func (c Chunked) Map(n int, fn func(i int)) {
	ParallelizeWithThreshold(n, c.Threshold, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// Default returns the mapper used when callers do not choose one.
func Default() Mapper {
	return Pool{}
}

// NewMapper returns Sequential for workers == 1 and a Pool otherwise.
// workers <= 0 selects one goroutine per CPU.
func NewMapper(workers int) Mapper {
	if workers == 1 {
		return Sequential{}
	}
	return Pool{MaxGoroutines: workers}
}

// MapSlice collects fn(i) for every index, preserving index order
// regardless of how m schedules the calls.
func MapSlice[T any](m Mapper, n int, fn func(i int) T) []T {
	out := make([]T, n)
	m.Map(n, func(i int) {
		out[i] = fn(i)
	})
	return out
}
