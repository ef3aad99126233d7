// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package thread provides serial execution contexts with thread affinity.
//
// A Thread runs posted tasks one at a time, in submission order. Affinity is
// carried by the context.Context handed to every task: code that receives
// such a context can ask a Thread whether it is currently running on it and
// skip the hop through the queue.
package thread

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"github.com/pion/logging"
)

// ErrClosed is returned by Invoke once the thread has been stopped.
var ErrClosed = errors.New("thread: closed")

// Task is a unit of work bound to a Thread. ctx carries the thread affinity
// marker and must be passed along to nested Invoke or IsCurrent calls.
type Task func(ctx context.Context)

type affinityKey struct {
	t *Thread
}

// Thread is a serial task executor.
type Thread struct {
	name string

	mu       sync.Mutex
	busyCh   chan struct{}
	tasks    *list.List
	isClosed bool

	base context.Context
	log  logging.LeveledLogger
}

type queued struct {
	ctx context.Context
	fn  Task
}

// New creates a Thread. No goroutine is running while the queue is empty.
func New(name string, loggerFactory logging.LoggerFactory) *Thread {
	t := &Thread{
		name:  name,
		tasks: list.New(),
		log:   loggerFactory.NewLogger("thread"),
	}
	t.base = t.bind(context.Background())

	return t
}

// Name returns the name given to New.
func (t *Thread) Name() string {
	return t.name
}

func (t *Thread) bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, affinityKey{t}, t)
}

// IsCurrent reports whether ctx was handed out by this thread, either to a
// task running on it or to a task invoked synchronously while it is blocked.
func (t *Thread) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, ok := ctx.Value(affinityKey{t}).(*Thread)

	return ok && owner == t
}

// Post queues fn and returns immediately. Tasks posted after Stop are dropped.
func (t *Thread) Post(fn Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tryEnqueue(t.base, fn) {
		t.log.Debugf("%s: dropping task posted after stop", t.name)
	}
}

// PostOrRun runs fn inline when ctx already belongs to this thread and posts
// it otherwise.
func (t *Thread) PostOrRun(ctx context.Context, fn Task) {
	if t.IsCurrent(ctx) {
		fn(ctx)

		return
	}
	t.Post(fn)
}

// Invoke runs fn on the thread and blocks until it returns. When ctx already
// belongs to the thread fn runs inline. The context given to fn keeps the
// affinity markers of ctx, so fn may call back into the blocked caller's
// thread without deadlocking.
func (t *Thread) Invoke(ctx context.Context, fn Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.IsCurrent(ctx) {
		fn(ctx)

		return nil
	}

	done := make(chan struct{})
	t.mu.Lock()
	enqueued := t.tryEnqueue(t.bind(ctx), func(taskCtx context.Context) {
		defer close(done)
		fn(taskCtx)
	})
	t.mu.Unlock()
	if !enqueued {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every task queued before the call has run.
func (t *Thread) Flush() {
	var wg sync.WaitGroup
	wg.Add(1)
	t.mu.Lock()
	enqueued := t.tryEnqueue(t.base, func(context.Context) {
		wg.Done()
	})
	t.mu.Unlock()
	if !enqueued {
		return
	}
	wg.Wait()
}

// IsClosed reports whether Stop has been called.
func (t *Thread) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.isClosed
}

// Stop waits for the queue to drain and forbids new tasks. It must not be
// called from a task running on the thread itself.
func (t *Thread) Stop() {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()

		return
	}
	t.isClosed = true
	t.mu.Unlock()

	for {
		t.mu.Lock()
		busyCh := t.busyCh
		t.mu.Unlock()
		if busyCh == nil {
			return
		}
		<-busyCh
	}
}

// tryEnqueue must be called with mu held.
func (t *Thread) tryEnqueue(ctx context.Context, fn Task) bool {
	if fn == nil || t.isClosed {
		return false
	}
	t.tasks.PushBack(queued{ctx: ctx, fn: fn})

	if t.busyCh == nil {
		t.busyCh = make(chan struct{})
		go t.run()
	}

	return true
}

func (t *Thread) pop() (queued, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tasks.Len() == 0 {
		return queued{}, false
	}

	e := t.tasks.Front()
	t.tasks.Remove(e)
	q, ok := e.Value.(queued)

	return q, ok
}

func (t *Thread) run() {
	defer func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		close(t.busyCh)

		if t.tasks.Len() == 0 {
			t.busyCh = nil

			return
		}

		// a task was queued while the loop was exiting, or a task panicked
		t.busyCh = make(chan struct{})
		go t.run()
	}()

	for q, ok := t.pop(); ok; q, ok = t.pop() {
		q.fn(q.ctx)
	}
}
