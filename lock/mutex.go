package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/enverbisevac/dmutex/errors"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ Locker = (*Mutex)(nil)

// Mutex is one acquisition attempt on a key. It carries its own identity
// for its whole lifetime, so a released and re-acquired Mutex still
// recognises its own record.
type Mutex struct {
	service *Service
	config  Config
	name    string
	key     string

	idOnce sync.Once
	id     string

	mu       sync.Mutex
	locked   bool
	start    time.Time
	lockedAt time.Time
}

// ID returns the identity written to the store while the mutex is held.
func (m *Mutex) ID() string {
	m.idOnce.Do(func() {
		m.id = m.config.IdentityFunc()
	})
	return m.id
}

// Key returns the key the mutex was created for, without namespace.
func (m *Mutex) Key() string {
	return m.name
}

func (m *Mutex) logger(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx).WithValues("key", m.key, "lock_id", m.ID())
}

func (m *Mutex) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return m.config.Tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("dmutex.key", m.name),
		attribute.String("dmutex.lock_id", m.ID()),
	))
}

// Lock polls the store until the record for the key is written with this
// mutex's identity. It fails with *TimeoutError once the configured timeout
// elapses and with ctx.Err() when the context is done.
func (m *Mutex) Lock(ctx context.Context) error {
	_, err := m.lock(ctx)
	return err
}

// lock reports whether this call acquired the record, false when the
// mutex was already held.
func (m *Mutex) lock(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locked {
		return false, nil
	}
	if m.name == "" {
		return false, errors.InvalidArgument("lock: empty key")
	}

	ctx, span := m.startSpan(ctx, "dmutex.Acquire")
	defer span.End()

	log := m.logger(ctx)
	log.V(1).Info("attempting to lock mutex", "timeout", m.config.Timeout, "ttl", m.config.TTL)

	m.start = time.Now()
	if err := m.acquire(ctx, log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	m.held()
	span.SetAttributes(attribute.Int64("dmutex.wait_ms", time.Since(m.start).Milliseconds()))
	return true, nil
}

func (m *Mutex) acquire(ctx context.Context, log logr.Logger) error {
	var (
		lastErr error
		// a failed write may still have landed in the store
		ambiguous bool
	)
	for {
		ok, err := m.service.store.SetIfAbsent(ctx, m.key, m.ID(), m.config.TTL)
		if err == nil && !ok && ambiguous {
			ok, _, err = m.lockedByMe(ctx)
		}
		if err == nil && ok {
			return nil
		}
		if err != nil {
			ambiguous = true
		}
		if ctx.Err() != nil {
			m.service.stats.cancel()
			m.abandon(ctx, ambiguous)
			return ctx.Err()
		}
		if err != nil {
			m.service.stats.backendError()
			log.Error(err, "store failed while acquiring lock, retrying")
			lastErr = err
		}

		wait := m.config.PollInterval
		if m.config.Timeout > 0 {
			remaining := m.config.Timeout - time.Since(m.start)
			if remaining <= 0 {
				m.service.stats.timeout()
				m.abandon(ctx, ambiguous)
				log.V(1).Info("timed out waiting for lock")
				return &TimeoutError{Key: m.name, Timeout: m.config.Timeout, Err: lastErr}
			}
			wait = min(wait, remaining)
		}

		if err := sleep(ctx, wait); err != nil {
			m.service.stats.cancel()
			m.abandon(ctx, ambiguous)
			return err
		}
	}
}

// abandon removes a record this mutex may have written during a failed
// store call before giving up on the lock.
func (m *Mutex) abandon(ctx context.Context, ambiguous bool) {
	if !ambiguous {
		return
	}
	_, _ = m.service.store.DeleteIfEquals(context.WithoutCancel(ctx), m.key, m.ID())
}

// TryLock makes a single acquisition attempt.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locked {
		return true, nil
	}
	if m.name == "" {
		return false, errors.InvalidArgument("lock: empty key")
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.start = time.Now()
	ok, err := m.service.store.SetIfAbsent(ctx, m.key, m.ID(), m.config.TTL)
	if err != nil {
		m.service.stats.backendError()
		m.abandon(ctx, true)
		return false, errors.Unavailable("lock %q: try lock", m.name).Source(err)
	}
	if !ok {
		return false, nil
	}

	m.held()
	return true, nil
}

func (m *Mutex) held() {
	m.locked = true
	m.lockedAt = time.Now()
	m.service.stats.lockAcquired()
}

// Unlock deletes the lock record if it still carries this mutex's
// identity. A record owned by anyone else is left untouched. Unlock on a
// mutex that is not held is a no-op.
//
// The mutex is no longer held after Unlock returns, even with an error.
// A record left behind by a failed release stays until its TTL expires or
// Service.ForceUnlock removes it.
func (m *Mutex) Unlock(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locked {
		return nil
	}
	m.locked = false
	m.service.stats.lockDropped(m.lockedAt)

	log := m.logger(ctx)
	log.V(1).Info("unlocking mutex")

	deleted, err := m.service.store.DeleteIfEquals(ctx, m.key, m.ID())
	if err != nil {
		m.service.stats.releaseFailed()
		return errors.Unavailable("lock %q: release", m.name).Source(err)
	}
	if deleted {
		m.service.stats.release()
		return nil
	}

	m.service.stats.releaseSkip()
	mine, holder, err := m.lockedByMe(ctx)
	switch {
	case err != nil:
		log.V(1).Info("lock record was not deleted", "error", err.Error())
	case mine:
		log.V(1).Info("lock record still ours after delete, it was rewritten concurrently")
	default:
		log.V(1).Info("lock record no longer ours, leaving it", "holder", holder)
	}
	return nil
}

// lockedByMe reports whether the stored record equals this mutex's identity.
// The answer is not atomic with respect to other contenders.
func (m *Mutex) lockedByMe(ctx context.Context) (bool, string, error) {
	holder, found, err := m.service.store.Get(ctx, m.key)
	if err != nil {
		return false, "", err
	}
	return found && holder == m.ID(), holder, nil
}

// Run acquires the mutex, runs fn exactly once and releases the mutex on
// every exit path, including a panic in fn. An error from fn is returned
// wrapped with the lock key; errors.Is and errors.As still match it. A
// failed release is logged and never replaces fn's outcome.
//
// Run on a mutex that is already held runs fn and leaves the mutex held;
// the caller that acquired it releases it.
func (m *Mutex) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := m.startSpan(ctx, "dmutex.Run")
	defer span.End()

	acquired, err := m.lock(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	log := m.logger(ctx)
	log.V(1).Info("locked, running critical section")

	defer func() {
		if !acquired {
			return
		}
		if err := m.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.Error(err, "failed to release lock")
			return
		}
		log.V(1).Info("mutex unlocked")
	}()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("lock %q: %w", m.name, err)
	}
	log.V(1).Info("critical section complete")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
