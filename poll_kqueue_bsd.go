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

//go:build darwin || netbsd || freebsd || openbsd || dragonfly
// +build darwin netbsd freebsd openbsd dragonfly

package ioloop

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ioloop/ioloop/internal/runner"
)

func openPoll() (Poll, error) {
	return openDefaultPoll()
}

func openDefaultPoll() (*defaultPoll, error) {
	poll := new(defaultPoll)
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	poll.fd = kq

	_, err = unix.Kevent(poll.fd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		_ = unix.Close(poll.fd)
		return nil, err
	}

	poll.cache = newWatchCache()
	return poll, nil
}

type defaultPoll struct {
	fd        int    // kqueue fd
	trigger   uint32 // trigger flag
	onTrigger func() // runs on the poll goroutine after Trigger
	watches   sync.Map
	cache     *watchCache
	hups      []func(p Poll) error
}

// Wait implements Poll.
func (p *defaultPoll) Wait() error {
	events := make([]unix.Kevent_t, 1024)
	for {
		n, err := unix.Kevent(p.fd, nil, events, nil)
		if err != nil && err != unix.EINTR {
			// exit gracefully when the kqueue fd was closed
			if err == unix.EBADF {
				return nil
			}
			return err
		}
		// n is -1 when the wait was interrupted by a signal
		if n <= 0 {
			continue
		}
		if p.handler(events[:n]) {
			return nil
		}
		// no dispatch is in flight here, parked watches can be recycled
		p.cache.free()
	}
}

// readyFd carries the merged readiness of one fd within a wait batch.
// Kqueue reports read and write readiness as separate kevents, so the
// filters must be folded together before dispatch to keep a single
// callback invocation per fd per cycle.
type readyFd struct {
	fd  int
	ev  Interest
	hup bool
}

func (p *defaultPoll) handler(events []unix.Kevent_t) (closed bool) {
	merged := make([]readyFd, 0, len(events))
	index := make(map[int]int, len(events))
	for i := range events {
		fd := int(events[i].Ident)

		// trigger
		if fd == 0 {
			// clean trigger
			atomic.StoreUint32(&p.trigger, 0)
			if p.onTrigger != nil {
				p.onTrigger()
			}
			continue
		}

		var ev Interest
		if events[i].Filter == unix.EVFILT_READ {
			ev |= Readable
		}
		if events[i].Filter == unix.EVFILT_WRITE {
			ev |= Writable
		}
		hup := events[i].Flags&unix.EV_EOF != 0
		if j, ok := index[fd]; ok {
			merged[j].ev |= ev
			merged[j].hup = merged[j].hup || hup
			continue
		}
		index[fd] = len(merged)
		merged = append(merged, readyFd{fd: fd, ev: ev, hup: hup})
	}

	for i := range merged {
		tmp, ok := p.watches.Load(merged[i].fd)
		if !ok {
			continue
		}
		w := tmp.(*Watch)
		if !w.do() {
			continue
		}

		if w.OnEvent != nil {
			if merged[i].ev != 0 {
				_ = w.OnEvent(p, merged[i].ev)
			}
		} else {
			if merged[i].ev&Readable != 0 && w.OnReadable != nil {
				_ = w.OnReadable(p)
			}
			if merged[i].ev&Writable != 0 && w.OnWritable != nil {
				_ = w.OnWritable(p)
			}
		}
		if merged[i].hup {
			p.appendHup(w)
			continue
		}
		w.done()
	}
	// notify hups together to avoid blocking the poll
	p.onhups()
	return false
}

// Close implements Poll. Closing the kqueue fd wakes up Wait with EBADF.
func (p *defaultPoll) Close() error {
	return unix.Close(p.fd)
}

// Trigger implements Poll.
func (p *defaultPoll) Trigger() error {
	if atomic.AddUint32(&p.trigger, 1) > 1 {
		return nil
	}
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	return err
}

// SetOnTrigger implements Poll.
func (p *defaultPoll) SetOnTrigger(fn func()) {
	p.onTrigger = fn
}

// Control implements Poll.
func (p *defaultPoll) Control(w *Watch, event PollEvent) error {
	switch event {
	case PollReadable:
		w.inuse()
		p.watches.Store(w.FD, w)
		if err := p.kctl(w.FD, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			p.watches.Delete(w.FD)
			return err
		}
		return nil
	case PollWritable:
		w.inuse()
		p.watches.Store(w.FD, w)
		if err := p.kctl(w.FD, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			p.watches.Delete(w.FD)
			return err
		}
		return nil
	case PollReadWrite:
		w.inuse()
		p.watches.Store(w.FD, w)
		if err := p.kctl(w.FD, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			p.watches.Delete(w.FD)
			return err
		}
		if err := p.kctl(w.FD, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			p.watches.Delete(w.FD)
			_ = p.kctl(w.FD, unix.EVFILT_READ, unix.EV_DELETE)
			return err
		}
		return nil
	case PollModReadable:
		_ = p.kctl(w.FD, unix.EVFILT_WRITE, unix.EV_DELETE)
		return p.kctl(w.FD, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	case PollModWritable:
		_ = p.kctl(w.FD, unix.EVFILT_READ, unix.EV_DELETE)
		return p.kctl(w.FD, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	case PollModReadWrite:
		if err := p.kctl(w.FD, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE); err != nil {
			return err
		}
		return p.kctl(w.FD, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	case PollDetach:
		p.watches.Delete(w.FD)
		// either filter may be absent, delete both best effort
		_ = p.kctl(w.FD, unix.EVFILT_READ, unix.EV_DELETE)
		_ = p.kctl(w.FD, unix.EVFILT_WRITE, unix.EV_DELETE)
		return nil
	}
	return nil
}

func (p *defaultPoll) kctl(fd int, filter int16, flags uint16) error {
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}}, nil, nil)
	return err
}

// Alloc implements Poll.
func (p *defaultPoll) Alloc() (w *Watch) {
	w = p.cache.alloc()
	w.poll = p
	return w
}

// Free implements Poll.
func (p *defaultPoll) Free(w *Watch) {
	p.cache.freeable(w)
}

func (p *defaultPoll) appendHup(w *Watch) {
	p.hups = append(p.hups, w.OnHup)
	p.detach(w)
	w.done()
}

func (p *defaultPoll) detach(w *Watch) {
	if err := w.Control(PollDetach); err != nil && err != unix.ENOENT {
		logger.Warnf("poller detach watch fd=%d failed: %v", w.FD, err)
	}
}

func (p *defaultPoll) onhups() {
	if len(p.hups) == 0 {
		return
	}
	hups := p.hups
	p.hups = nil
	runner.RunTask(context.Background(), func() {
		for i := range hups {
			if hups[i] != nil {
				_ = hups[i](p)
			}
		}
	})
}
