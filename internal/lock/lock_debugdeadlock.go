//go:build debugdeadlock

// Built with `-tags debugdeadlock`: swaps in go-deadlock's mutexes,
// which log a stack trace and the holder's lock-acquisition site when
// a lock is held past a deadline instead of hanging forever. Useful
// for chasing a violation of the "tasks that touch the same
// filter are serialized by the scheduler's filter-level mutual
// exclusion" invariant, grounded on the jesseduffield-lazydocker pack
// member's use of go-deadlock throughout its concurrent state.
package lock

import "github.com/sasha-s/go-deadlock"

type Mutex = deadlock.Mutex
type RWMutex = deadlock.RWMutex
