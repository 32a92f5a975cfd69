package fastalloc

import (
	"github.com/hupe1980/fastalloc/internal/mmap"
	"github.com/hupe1980/fastalloc/internal/resource"
	"github.com/hupe1980/fastalloc/internal/span"
)

// trackingReserver decorates the OS reserver for one heap component.
// Every mapping is charged to the budget and published in the span
// registry under the heap's id, so any heap can route a free back to it.
// The underlying reserver must round sizes to whole pages, as MapAnon does.
type trackingReserver struct {
	owner  uint32
	kind   span.Kind
	next   mmap.Reserver
	budget *resource.Controller
	spans  *span.Registry
	logger *Logger
}

func (h *Heap) reserver(kind span.Kind) *trackingReserver {
	var rc *resource.Controller
	if h.opts.budget != nil {
		rc = h.opts.budget.rc
	}
	return &trackingReserver{
		owner:  h.id,
		kind:   kind,
		next:   h.opts.reserver,
		budget: rc,
		spans:  h.spans,
		logger: h.logger,
	}
}

func (r *trackingReserver) Reserve(size int) (*mmap.Mapping, error) {
	charge := int64(mmap.RoundUp(size))
	if err := r.budget.AcquireMemory(charge); err != nil {
		r.logger.LogLimit("memory budget", size, err)
		return nil, err
	}

	m, err := r.next.Reserve(size)
	if err != nil {
		r.budget.ReleaseMemory(charge)
		rerr := &ReserveError{Size: size, cause: err}
		r.logger.LogReserve(r.kind.String(), size, rerr)
		return nil, rerr
	}

	r.spans.Insert(span.Span{
		Base:  m.Addr(),
		Limit: m.Addr() + uintptr(m.Size()),
		Owner: r.owner,
		Kind:  r.kind,
	})
	r.logger.LogReserve(r.kind.String(), m.Size(), nil)
	return m, nil
}

func (r *trackingReserver) Release(m *mmap.Mapping) error {
	size := m.Size()
	r.spans.Remove(m.Addr())

	err := r.next.Release(m)
	r.logger.LogRelease(r.kind.String(), size, err)
	if err != nil {
		// The mapping is leaked and stays charged.
		return err
	}
	r.budget.ReleaseMemory(int64(size))
	return nil
}
