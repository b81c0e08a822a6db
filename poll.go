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

// Poll monitors watched fds and dispatches their callbacks when the OS
// reports them ready. One Poll is driven by exactly one Wait loop.
type Poll interface {
	// Wait blocks on the OS readiness primitive and dispatches ready
	// watches, cycle after cycle, until Close is called.
	Wait() error

	// Close wakes up Wait and makes it return. All fds owned by the
	// poll are released; watched fds are left open.
	Close() error

	// Trigger wakes up Wait without any fd being ready, causing the
	// trigger hook to run on the poll goroutine.
	Trigger() error

	// SetOnTrigger sets the hook invoked on the poll goroutine after
	// Trigger. Must be called before Wait.
	SetOnTrigger(fn func())

	// Control applies a registration change for the watch on the poll.
	Control(w *Watch, event PollEvent) error

	// Alloc takes a watch from the poll's cache.
	Alloc() *Watch

	// Free returns a watch to the poll's cache. The watch must already
	// be detached; the release is applied between dispatch cycles.
	Free(w *Watch)
}

// PollEvent defines the operation applied by Poll.Control.
type PollEvent int

const (
	// PollReadable registers the watch for readable readiness.
	PollReadable PollEvent = iota + 1
	// PollWritable registers the watch for writable readiness.
	PollWritable
	// PollReadWrite registers the watch for both directions.
	PollReadWrite
	// PollModReadable switches an existing watch to readable only.
	PollModReadable
	// PollModWritable switches an existing watch to writable only.
	PollModWritable
	// PollModReadWrite switches an existing watch to both directions.
	PollModReadWrite
	// PollDetach removes the watch from the poll.
	PollDetach
)

// Interest describes which kinds of readiness a registration cares
// about, and which kind fired when a callback is invoked.
type Interest int

const (
	// Readable reports that the resource can be read without blocking.
	Readable Interest = 0x1
	// Writable reports that the resource can be written without blocking.
	Writable Interest = 0x2
	// Closed reports that the peer hung up or the fd errored. The watch
	// has already been unregistered when the callback sees it.
	Closed Interest = 0x8
)

func (i Interest) String() string {
	switch i & (Readable | Writable | Closed) {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	case Readable | Writable:
		return "readable|writable"
	case Closed:
		return "closed"
	default:
		return "none"
	}
}
