//go:build !debugdeadlock

// Package lock re-exports the mutex types the scheduler and filter
// orchestrator guard their state with, so a single build tag can swap
// every one of them for a deadlock-detecting implementation at once.
//
// Default build: plain sync primitives, zero overhead.
package lock

import "sync"

type Mutex = sync.Mutex
type RWMutex = sync.RWMutex
