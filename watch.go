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

package ioloop

import (
	"runtime"
	"sync/atomic"
)

// Watch binds an fd to its readiness callbacks on a poll.
//
// Either OnEvent or the split OnReadable/OnWritable hooks are used,
// never both: when OnEvent is set the poll merges the fired interests
// of a cycle into a single invocation.
type Watch struct {
	// FD is the watched file descriptor.
	FD int

	// OnEvent handles readiness with the interests that fired merged
	// into ev. Invoked at most once per dispatch cycle.
	OnEvent func(p Poll, ev Interest) error

	// OnReadable handles readable readiness when OnEvent is nil.
	OnReadable func(p Poll) error
	// OnWritable handles writable readiness when OnEvent is nil.
	OnWritable func(p Poll) error

	// OnHup handles peer hangup or fd error. The poll detaches the
	// watch first, then runs OnHup off the poll goroutine.
	OnHup func(p Poll) error

	// poll that owns this watch.
	poll Poll

	// freelist bookkeeping, owned by watchCache.
	index int32
	next  *Watch

	// state: 0 means unused, 1 means registered, 2 means a callback
	// for this watch is running on the poll goroutine.
	state int32
}

// Control applies the event to the owning poll.
func (w *Watch) Control(event PollEvent) error {
	return w.poll.Control(w, event)
}

// do marks the watch as processing; reports false when the watch has
// been detached between the OS report and the dispatch.
func (w *Watch) do() bool {
	return atomic.CompareAndSwapInt32(&w.state, 1, 2)
}

func (w *Watch) done() {
	atomic.CompareAndSwapInt32(&w.state, 2, 1)
}

func (w *Watch) inuse() {
	for !atomic.CompareAndSwapInt32(&w.state, 0, 1) {
		if atomic.LoadInt32(&w.state) == 1 {
			return
		}
		runtime.Gosched()
	}
}

func (w *Watch) isUnused() bool {
	return atomic.LoadInt32(&w.state) == 0
}

func (w *Watch) reset() {
	w.FD = 0
	w.OnEvent, w.OnReadable, w.OnWritable, w.OnHup = nil, nil, nil, nil
	w.poll = nil
	atomic.StoreInt32(&w.state, 0)
}
