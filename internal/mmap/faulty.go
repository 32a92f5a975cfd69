package mmap

import (
	"errors"
	"sync"
)

// ErrInjected is the default error returned by a Faulty reserver.
var ErrInjected = errors.New("mmap: injected fault")

// Fault defines specific failure behavior.
type Fault struct {
	FailAfterCalls int  // Fail every Reserve after this many succeeded. -1 to disable.
	FailAboveSize  int  // Fail requests larger than this. 0 to disable.
	FailOnRelease  bool // Release unmaps but reports Err.
	Err            error
}

// Faulty is a Reserver wrapper that can inject errors.
// It also records every successful reservation.
type Faulty struct {
	next  Reserver
	mu    sync.Mutex
	fault Fault

	sizes    []int
	calls    int
	released int
}

// NewFaulty creates a Faulty reserver wrapping next (or OS if nil).
// It injects nothing until SetFault is called.
func NewFaulty(next Reserver) *Faulty {
	if next == nil {
		next = OS
	}
	return &Faulty{
		next:  next,
		fault: Fault{FailAfterCalls: -1},
	}
}

// SetFault replaces the failure behavior. The call count restarts.
func (f *Faulty) SetFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.fault = fault
	f.calls = 0
}

func (f *Faulty) Reserve(size int) (*Mapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fault.FailAfterCalls >= 0 && f.calls >= f.fault.FailAfterCalls {
		return nil, f.fault.Err
	}
	if f.fault.FailAboveSize > 0 && size > f.fault.FailAboveSize {
		return nil, f.fault.Err
	}

	m, err := f.next.Reserve(size)
	if err != nil {
		return nil, err
	}
	f.calls++
	f.sizes = append(f.sizes, m.Size())
	return m, nil
}

func (f *Faulty) Release(m *Mapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.next.Release(m); err != nil {
		return err
	}
	f.released++
	if f.fault.FailOnRelease {
		return f.fault.Err
	}
	return nil
}

// Sizes returns the sizes of all successful reservations, in order.
func (f *Faulty) Sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int(nil), f.sizes...)
}

// Released returns the number of released mappings.
func (f *Faulty) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.released
}
