// services/lock.go
package services

import (
	"sync"
	"sync/atomic"
)

// EngineLock serializes every state-mutating operation into a strict total
// order and carries the single-flight transfer flag. While a settlement's
// outbound transfer is executing, control is in external hands; any guarded
// operation entered during that window is rejected instead of queued, so a
// transfer callback can never re-enter the engine.
type EngineLock struct {
	mu           sync.Mutex
	transferring atomic.Bool
}

func NewEngineLock() *EngineLock {
	return &EngineLock{}
}

// Acquire takes the writer lock, failing fast if an outbound transfer is in
// flight.
func (l *EngineLock) Acquire() error {
	if l.transferring.Load() {
		return ErrReentrantCall
	}
	l.mu.Lock()
	// Re-check under the lock: the flag may have been raised while we waited.
	if l.transferring.Load() {
		l.mu.Unlock()
		return ErrReentrantCall
	}
	return nil
}

func (l *EngineLock) Release() {
	l.mu.Unlock()
}

// BeginTransfer marks the transfer window; EndTransfer closes it.
func (l *EngineLock) BeginTransfer() { l.transferring.Store(true) }
func (l *EngineLock) EndTransfer()   { l.transferring.Store(false) }
