// Package memory provides in-process implementations of the document, graph
// and cache stores. They back the development profile and double as test
// doubles: every operation can be made to fail and every call is counted.
package memory

import "sync"

// Faults records calls per operation and returns injected errors.
type Faults struct {
	mu    sync.Mutex
	errs  map[string]error
	calls map[string]int
}

func newFaults() *Faults {
	return &Faults{
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// FailOn makes every subsequent call of op return err.
func (f *Faults) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

// Clear removes the injected error for op.
func (f *Faults) Clear(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, op)
}

// Calls returns how many times op was invoked, failed calls included.
func (f *Faults) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (f *Faults) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *Faults) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}
