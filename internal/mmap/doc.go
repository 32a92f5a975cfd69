// Package mmap reserves anonymous memory from the operating system.
//
// # Overview
//
// Every byte the allocator hands out comes from a Mapping: a private,
// zero-filled, read-write reservation outside the Go heap. The garbage
// collector never scans it, so pointers into it must never be the only
// reference to Go-managed objects.
//
// # Usage
//
//	m, err := mmap.MapAnon(1 << 20)
//	if err != nil { ... }
//	defer m.Close()
//
//	base := m.Base()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE
//   - Windows: VirtualAlloc with MEM_RESERVE|MEM_COMMIT
//
// # Reservers
//
// Components never call MapAnon directly. They receive a Reserver, so the
// front end can account reservations against a budget and record the
// address range of every mapping it owns.
//
// Faulty wraps a Reserver and injects failures, for tests of the paths
// that run when the OS refuses memory:
//
//	r := mmap.NewFaulty(nil)
//	r.SetFault(mmap.Fault{FailAfterCalls: 2})
package mmap
