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
	"context"
	"runtime"
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

	poll.buf = make([]byte, 8)
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	poll.fd = epfd

	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(poll.fd)
		return nil, err
	}
	poll.wop = &Watch{FD: efd}

	if err = poll.Control(poll.wop, PollReadable); err != nil {
		_ = unix.Close(poll.wop.FD)
		_ = unix.Close(poll.fd)
		return nil, err
	}

	poll.cache = newWatchCache()
	return poll, nil
}

type defaultPoll struct {
	fd        int         // epoll fd
	wop       *Watch      // eventfd, wake epoll_wait
	buf       []byte      // read wfd trigger msg
	trigger   uint32      // trigger flag
	onTrigger func()      // runs on the poll goroutine after Trigger
	watches   sync.Map    // key=fd, value=*Watch
	cache     *watchCache // watch cache
	size      int
	events    []unix.EpollEvent
	hups      []func(p Poll) error
}

func (p *defaultPoll) grow(size int) {
	p.size = size
	p.events = make([]unix.EpollEvent, size)
}

// Wait implements Poll.
func (p *defaultPoll) Wait() (err error) {
	var msec, n = -1, 0
	p.grow(128)
	for {
		if n == p.size && p.size < 128*1024 {
			p.grow(p.size << 1)
		}
		n, err = unix.EpollWait(p.fd, p.events, msec)
		if err != nil && err != unix.EINTR {
			return err
		}
		if n <= 0 {
			msec = -1
			runtime.Gosched()
			continue
		}
		msec = 0
		if p.handler(p.events[:n]) {
			return nil
		}
		// no dispatch is in flight here, parked watches can be recycled
		p.cache.free()
	}
}

func (p *defaultPoll) handler(events []unix.EpollEvent) (closed bool) {
	for i := range events {
		fd := int(events[i].Fd)

		// trigger or exit gracefully
		if fd == p.wop.FD {
			// must clean trigger first
			_, _ = unix.Read(p.wop.FD, p.buf)
			atomic.StoreUint32(&p.trigger, 0)
			// if closed & exit
			if p.buf[0] > 0 {
				_ = unix.Close(p.wop.FD)
				_ = unix.Close(p.fd)
				return true
			}
			if p.onTrigger != nil {
				p.onTrigger()
			}
			continue
		}

		tmp, ok := p.watches.Load(fd)
		if !ok {
			continue
		}
		w := tmp.(*Watch)
		if !w.do() {
			continue
		}

		evt := events[i].Events
		triggerRead := evt&unix.EPOLLIN != 0
		triggerWrite := evt&unix.EPOLLOUT != 0
		triggerHup := evt&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0

		if w.OnEvent != nil {
			var ev Interest
			if triggerRead {
				ev |= Readable
			}
			if triggerWrite {
				ev |= Writable
			}
			if ev != 0 {
				_ = w.OnEvent(p, ev)
			}
		} else {
			if triggerRead && w.OnReadable != nil {
				_ = w.OnReadable(p)
			}
			if triggerWrite && w.OnWritable != nil {
				_ = w.OnWritable(p)
			}
		}
		if triggerHup {
			p.appendHup(w)
			continue
		}
		w.done()
	}
	// notify hups together to avoid blocking the poll
	p.onhups()
	return false
}

// Close makes Wait return by writing the exit byte to the eventfd.
func (p *defaultPoll) Close() error {
	_, err := unix.Write(p.wop.FD, []byte{1, 0, 0, 0, 0, 0, 0, 0})
	return err
}

// Trigger implements Poll.
func (p *defaultPoll) Trigger() error {
	if atomic.AddUint32(&p.trigger, 1) > 1 {
		return nil
	}
	// MAX(eventfd) = 0xfffffffffffffffe
	_, err := unix.Write(p.wop.FD, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	return err
}

// SetOnTrigger implements Poll.
func (p *defaultPoll) SetOnTrigger(fn func()) {
	p.onTrigger = fn
}

// Control implements Poll.
func (p *defaultPoll) Control(w *Watch, event PollEvent) error {
	var op int
	var evt unix.EpollEvent
	evt.Fd = int32(w.FD)
	switch event {
	case PollReadable:
		w.inuse()
		p.watches.Store(w.FD, w)
		op, evt.Events = unix.EPOLL_CTL_ADD, unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLERR
	case PollWritable:
		w.inuse()
		p.watches.Store(w.FD, w)
		op, evt.Events = unix.EPOLL_CTL_ADD, unix.EPOLLOUT|unix.EPOLLRDHUP|unix.EPOLLERR
	case PollReadWrite:
		w.inuse()
		p.watches.Store(w.FD, w)
		op, evt.Events = unix.EPOLL_CTL_ADD, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLRDHUP|unix.EPOLLERR
	case PollModReadable:
		op, evt.Events = unix.EPOLL_CTL_MOD, unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLERR
	case PollModWritable:
		op, evt.Events = unix.EPOLL_CTL_MOD, unix.EPOLLOUT|unix.EPOLLRDHUP|unix.EPOLLERR
	case PollModReadWrite:
		op, evt.Events = unix.EPOLL_CTL_MOD, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLRDHUP|unix.EPOLLERR
	case PollDetach:
		p.watches.Delete(w.FD)
		op, evt.Events = unix.EPOLL_CTL_DEL, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLRDHUP|unix.EPOLLERR
	}
	err := unix.EpollCtl(p.fd, op, w.FD, &evt)
	if err != nil && op == unix.EPOLL_CTL_ADD {
		// keep the fd index in sync with the epoll set
		p.watches.Delete(w.FD)
	}
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
