// Copyright 2026 ioloop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build darwin || netbsd || freebsd || openbsd || dragonfly || linux
// +build darwin netbsd freebsd openbsd dragonfly linux

package ioloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/ioloop/ioloop/internal/runner"
)

// Callback handles a readiness notification for a registered fd. ev
// reports which interests fired, Closed means the peer hung up and the
// fd has already been unregistered.
type Callback func(fd int, ev Interest) error

// Dispatcher multiplexes readiness callbacks for registered fds over a
// single poll loop. Callbacks run to completion on the loop goroutine
// before the next OS wait, unless WithAsyncDispatch is set.
type Dispatcher struct {
	poll Poll
	opts *options

	mu      sync.Mutex
	watches map[int]*Watch

	taskMu sync.Mutex
	tasks  *queue.Queue

	closed   int32
	running  int32
	loopDone chan struct{}
}

// NewDispatcher opens a dispatcher with its own poll, unless WithPoll
// injects one.
func NewDispatcher(ops ...Option) (*Dispatcher, error) {
	opts := &options{}
	for _, do := range ops {
		do.f(opts)
	}
	d := &Dispatcher{
		opts:     opts,
		watches:  make(map[int]*Watch),
		tasks:    queue.New(),
		loopDone: make(chan struct{}),
	}
	if opts.poll != nil {
		d.poll = opts.poll
	} else {
		poll, err := openPoll()
		if err != nil {
			return nil, err
		}
		d.poll = poll
	}
	d.poll.SetOnTrigger(d.drainTasks)
	return d, nil
}

// Register adds a watch for fd with the given interest. The callback is
// invoked once per poll cycle while the fd stays ready. Registering an
// fd twice fails with ErrWatchExists.
func (d *Dispatcher) Register(fd int, interest Interest, cb Callback) error {
	if fd < 0 {
		return Exception(ErrInvalidWatch, fmt.Sprintf("fd=%d", fd))
	}
	if cb == nil {
		return Exception(ErrInvalidWatch, "nil callback")
	}
	event, ok := addEvent(interest)
	if !ok {
		return Exception(ErrInvalidWatch, fmt.Sprintf("interest=%s", interest))
	}
	if atomic.LoadInt32(&d.closed) == 1 {
		return ErrDispatcherClosed
	}

	w := d.poll.Alloc()
	w.FD = fd
	w.OnEvent = func(p Poll, ev Interest) error {
		d.invoke(fd, ev, cb)
		return nil
	}
	w.OnHup = func(p Poll) error {
		// the poll has already detached the watch
		if d.remove(fd, false) {
			d.invoke(fd, Closed, cb)
		}
		return nil
	}

	d.mu.Lock()
	if _, exists := d.watches[fd]; exists {
		d.mu.Unlock()
		d.poll.Free(w)
		return Exception(ErrWatchExists, fmt.Sprintf("fd=%d", fd))
	}
	d.watches[fd] = w
	d.mu.Unlock()

	if err := d.poll.Control(w, event); err != nil {
		d.mu.Lock()
		delete(d.watches, fd)
		d.mu.Unlock()
		d.poll.Free(w)
		return Exception(ErrInvalidWatch, err.Error())
	}
	return nil
}

// Unregister removes the watch for fd. It is a no-op when fd is not
// registered, and safe to call from inside the fd's own callback: the
// callback finishes, then no further dispatch occurs.
func (d *Dispatcher) Unregister(fd int) error {
	d.remove(fd, true)
	return nil
}

// Modify switches the interest of a registered fd.
func (d *Dispatcher) Modify(fd int, interest Interest) error {
	event, ok := modEvent(interest)
	if !ok {
		return Exception(ErrInvalidWatch, fmt.Sprintf("interest=%s", interest))
	}
	d.mu.Lock()
	w, exists := d.watches[fd]
	d.mu.Unlock()
	if !exists {
		return Exception(ErrInvalidWatch, fmt.Sprintf("fd=%d is not registered", fd))
	}
	return d.poll.Control(w, event)
}

// Run drives the loop: it blocks on the OS readiness primitive and
// dispatches ready watches until Close or Shutdown. Returns nil on a
// clean close.
func (d *Dispatcher) Run() error {
	if atomic.LoadInt32(&d.closed) == 1 {
		return ErrDispatcherClosed
	}
	if !atomic.CompareAndSwapInt32(&d.running, 0, 1) {
		return ErrLoopRunning
	}
	defer close(d.loopDone)
	err := d.poll.Wait()
	atomic.StoreInt32(&d.closed, 1)
	return err
}

// Submit posts fn to run on the loop goroutine between dispatch cycles.
func (d *Dispatcher) Submit(fn func()) error {
	if fn == nil {
		return Exception(ErrInvalidWatch, "nil task")
	}
	if atomic.LoadInt32(&d.closed) == 1 {
		return ErrDispatcherClosed
	}
	d.taskMu.Lock()
	d.tasks.Add(fn)
	d.taskMu.Unlock()
	return d.poll.Trigger()
}

// Close stops the loop immediately. Watched fds are left open, their
// callbacks are never invoked again.
func (d *Dispatcher) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil
	}
	d.mu.Lock()
	watches := d.watches
	d.watches = make(map[int]*Watch)
	d.mu.Unlock()
	for _, w := range watches {
		if err := w.Control(PollDetach); err != nil && err != unix.ENOENT {
			logger.Warnf("detach fd=%d on close failed: %v", w.FD, err)
		}
		d.poll.Free(w)
	}
	// closing the poll is what makes Wait, and therefore Run, return
	return d.poll.Close()
}

// Shutdown closes the dispatcher and waits for the loop goroutine to
// finish, honoring the ctx deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if err := d.Close(); err != nil {
		return err
	}
	if atomic.LoadInt32(&d.running) == 0 {
		return nil
	}
	select {
	case <-d.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// remove unregisters fd, detaching it from the poll when detach is set.
// Reports whether this call owned the removal.
func (d *Dispatcher) remove(fd int, detach bool) bool {
	d.mu.Lock()
	w, exists := d.watches[fd]
	if !exists {
		d.mu.Unlock()
		return false
	}
	delete(d.watches, fd)
	d.mu.Unlock()
	if detach {
		if err := w.Control(PollDetach); err != nil && err != unix.ENOENT {
			logger.Warnf("detach fd=%d failed: %v", fd, err)
		}
	}
	d.poll.Free(w)
	return true
}

func (d *Dispatcher) invoke(fd int, ev Interest, cb Callback) {
	if d.opts.asyncDispatch {
		runner.RunTask(context.Background(), func() {
			d.safeCall(fd, ev, cb)
		})
		return
	}
	d.safeCall(fd, ev, cb)
}

func (d *Dispatcher) safeCall(fd int, ev Interest, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			d.onError(&CallbackError{FD: fd, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := cb(fd, ev); err != nil {
		d.onError(&CallbackError{FD: fd, Err: err})
	}
}

func (d *Dispatcher) drainTasks() {
	for {
		d.taskMu.Lock()
		if d.tasks.Length() == 0 {
			d.taskMu.Unlock()
			return
		}
		fn := d.tasks.Remove().(func())
		d.taskMu.Unlock()
		d.runTask(fn)
	}
}

func (d *Dispatcher) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.onError(&CallbackError{FD: -1, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	fn()
}

func (d *Dispatcher) onError(err error) {
	if h := d.opts.errorHandler; h != nil {
		h(err)
		return
	}
	logger.Errorf("%v", err)
}

func addEvent(interest Interest) (PollEvent, bool) {
	switch interest & (Readable | Writable) {
	case Readable:
		return PollReadable, true
	case Writable:
		return PollWritable, true
	case Readable | Writable:
		return PollReadWrite, true
	}
	return 0, false
}

func modEvent(interest Interest) (PollEvent, bool) {
	switch interest & (Readable | Writable) {
	case Readable:
		return PollModReadable, true
	case Writable:
		return PollModWritable, true
	case Readable | Writable:
		return PollModReadWrite, true
	}
	return 0, false
}
