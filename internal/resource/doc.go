// Package resource accounts reserved address space against a limit.
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.AcquireMemory(16 << 20); err != nil {
//	    // ErrMemoryLimitExceeded - the reservation is refused
//	}
//	defer rc.ReleaseMemory(16 << 20)
//
// Allocators acquire before every OS reservation and release after the
// mapping is returned, so usage tracks reserved bytes, not live objects.
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use. Several heaps may
// share one Controller.
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
package resource
