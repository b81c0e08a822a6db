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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestPollDispatch(t *testing.T) {
	p, err := openDefaultPoll()
	MustNil(t, err)
	stop := make(chan error)
	go func() {
		stop <- p.Wait()
	}()

	r, w := GetSysFdPairs()
	defer unix.Close(w)

	var rn int32
	buf := make([]byte, 64)
	rop := p.Alloc()
	rop.FD = r
	rop.OnReadable = func(Poll) error {
		atomic.AddInt32(&rn, 1)
		_, _ = unix.Read(r, buf)
		return nil
	}
	err = p.Control(rop, PollReadable)
	MustNil(t, err)

	_, err = unix.Write(w, []byte("ping"))
	MustNil(t, err)
	time.Sleep(50 * time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&rn)), 1)

	_, err = unix.Write(w, []byte("ping"))
	MustNil(t, err)
	time.Sleep(50 * time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&rn)), 2)

	err = p.Control(rop, PollDetach)
	MustNil(t, err)
	p.Free(rop)
	_ = unix.Close(r)

	err = p.Close()
	MustNil(t, err)
	MustNil(t, <-stop)
}

func TestPollTrigger(t *testing.T) {
	var triggered int32
	p, err := openDefaultPoll()
	MustNil(t, err)
	p.SetOnTrigger(func() {
		atomic.AddInt32(&triggered, 1)
	})
	stop := make(chan error)
	go func() {
		stop <- p.Wait()
	}()

	time.Sleep(time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&triggered)), 0)
	err = p.Trigger()
	MustNil(t, err)
	time.Sleep(50 * time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&triggered)), 1)
	err = p.Trigger()
	MustNil(t, err)
	time.Sleep(50 * time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&triggered)), 2)

	err = p.Close()
	MustNil(t, err)
	MustNil(t, <-stop)
}

func TestPollDetachStopsDispatch(t *testing.T) {
	p, err := openDefaultPoll()
	MustNil(t, err)
	stop := make(chan error)
	go func() {
		stop <- p.Wait()
	}()

	r, w := GetSysFdPairs()
	defer unix.Close(r)
	defer unix.Close(w)

	var rn int32
	rop := p.Alloc()
	rop.FD = r
	rop.OnReadable = func(Poll) error {
		// leave the data unread on purpose, a level triggered poll
		// would keep reporting it
		atomic.AddInt32(&rn, 1)
		return rop.Control(PollDetach)
	}
	err = p.Control(rop, PollReadable)
	MustNil(t, err)

	_, err = unix.Write(w, []byte("ping"))
	MustNil(t, err)
	time.Sleep(100 * time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&rn)), 1)
	p.Free(rop)

	err = p.Close()
	MustNil(t, err)
	MustNil(t, <-stop)
}

func TestPollHup(t *testing.T) {
	p, err := openDefaultPoll()
	MustNil(t, err)
	stop := make(chan error)
	go func() {
		stop <- p.Wait()
	}()

	r, w := GetSysFdPairs()
	defer unix.Close(r)

	var hn int32
	hup := make(chan struct{})
	rop := p.Alloc()
	rop.FD = r
	rop.OnReadable = func(Poll) error { return nil }
	rop.OnHup = func(Poll) error {
		if atomic.AddInt32(&hn, 1) == 1 {
			close(hup)
		}
		return nil
	}
	err = p.Control(rop, PollReadable)
	MustNil(t, err)

	err = unix.Close(w)
	MustNil(t, err)
	select {
	case <-hup:
	case <-time.After(time.Second):
		t.Fatal("hup was not delivered")
	}
	p.Free(rop)

	err = p.Close()
	MustNil(t, err)
	MustNil(t, <-stop)
}

func TestPollReadWriteSingleCycle(t *testing.T) {
	p, err := openDefaultPoll()
	MustNil(t, err)
	stop := make(chan error)
	go func() {
		stop <- p.Wait()
	}()

	r, w := GetSysFdPairs()
	defer unix.Close(r)
	defer unix.Close(w)

	// pending data plus a writable buffer: both interests fire at once
	_, err = unix.Write(w, []byte("ping"))
	MustNil(t, err)

	var n int32
	var got int32
	op := p.Alloc()
	op.FD = r
	op.OnEvent = func(pp Poll, ev Interest) error {
		if atomic.AddInt32(&n, 1) == 1 {
			atomic.StoreInt32(&got, int32(ev))
			return op.Control(PollDetach)
		}
		return nil
	}
	err = p.Control(op, PollReadWrite)
	MustNil(t, err)

	time.Sleep(100 * time.Millisecond)
	// one callback per cycle carrying both interests, never one per interest
	Equal(t, int(atomic.LoadInt32(&n)), 1)
	Equal(t, Interest(atomic.LoadInt32(&got)), Readable|Writable)
	p.Free(op)

	err = p.Close()
	MustNil(t, err)
	MustNil(t, <-stop)
}

func TestPollControlAddFailed(t *testing.T) {
	p, err := openDefaultPoll()
	MustNil(t, err)
	stop := make(chan error)
	go func() {
		stop <- p.Wait()
	}()

	r, w := GetSysFdPairs()
	_ = unix.Close(w)
	_ = unix.Close(r)

	op := p.Alloc()
	op.FD = r
	op.OnReadable = func(Poll) error { return nil }
	err = p.Control(op, PollReadable)
	MustTrue(t, err != nil)
	// a failed add must not leave the fd indexed
	_, ok := p.watches.Load(r)
	MustTrue(t, !ok)
	p.Free(op)

	err = p.Close()
	MustNil(t, err)
	MustNil(t, <-stop)
}

func TestPollWaitInterrupted(t *testing.T) {
	p, err := openDefaultPoll()
	MustNil(t, err)
	stop := make(chan error)
	go func() {
		stop <- p.Wait()
	}()

	// interrupt the blocked wait with signals, the loop must survive
	for i := 0; i < 10; i++ {
		MustNil(t, unix.Kill(unix.Getpid(), unix.SIGURG))
		time.Sleep(time.Millisecond)
	}

	r, w := GetSysFdPairs()
	defer unix.Close(r)
	defer unix.Close(w)

	var rn int32
	buf := make([]byte, 64)
	rop := p.Alloc()
	rop.FD = r
	rop.OnReadable = func(Poll) error {
		atomic.AddInt32(&rn, 1)
		_, _ = unix.Read(r, buf)
		return nil
	}
	err = p.Control(rop, PollReadable)
	MustNil(t, err)

	_, err = unix.Write(w, []byte("ping"))
	MustNil(t, err)
	time.Sleep(50 * time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&rn)), 1)
	p.Free(rop)

	err = p.Close()
	MustNil(t, err)
	MustNil(t, <-stop)
}

func TestPollClose(t *testing.T) {
	p, err := openDefaultPoll()
	MustNil(t, err)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		_ = p.Wait()
		wg.Done()
	}()
	err = p.Close()
	MustNil(t, err)
	wg.Wait()
}

func BenchmarkPollControl(b *testing.B) {
	b.StopTimer()
	p, err := openDefaultPoll()
	if err != nil {
		b.Fatal(err)
	}
	r, _ := GetSysFdPairs()
	w := p.Alloc()
	w.FD = r
	_ = p.Control(w, PollReadable)

	b.ReportAllocs()
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Control(w, PollModReadWrite)
	}
}
