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
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestPickPoll(t *testing.T) {
	p, err := PickPoll()
	MustNil(t, err)
	MustTrue(t, p != nil)

	// the shared poll is already running, watches dispatch right away
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
	MustNil(t, p.Control(rop, PollReadable))

	_, err = unix.Write(w, []byte("ping"))
	MustNil(t, err)
	time.Sleep(50 * time.Millisecond)
	Equal(t, int(atomic.LoadInt32(&rn)), 1)

	MustNil(t, p.Control(rop, PollDetach))
	p.Free(rop)
}

func TestPollManagerReset(t *testing.T) {
	Initialize()
	n := pollmanager.NumLoops
	err := pollmanager.Reset()
	MustNil(t, err)
	Equal(t, len(pollmanager.polls), n)
	Equal(t, pollmanager.NumLoops, n)
}

func TestPollManagerSetNumLoops(t *testing.T) {
	err := pollmanager.SetNumLoops(0)
	MustTrue(t, err != nil)

	Initialize()
	err = pollmanager.SetNumLoops(2)
	MustNil(t, err)
	Equal(t, len(pollmanager.polls), 2)

	err = pollmanager.SetNumLoops(1)
	MustNil(t, err)
	Equal(t, len(pollmanager.polls), 1)
}

func TestLoadBalance(t *testing.T) {
	polls := []Poll{nil, nil, nil}
	lb := newLoadbalance(RoundRobin, polls)
	Equal(t, lb.LoadBalance(), RoundRobin)
	for i := 0; i < 2*len(polls); i++ {
		lb.Pick()
	}

	lb = newLoadbalance(Random, polls)
	Equal(t, lb.LoadBalance(), Random)
	for i := 0; i < 2*len(polls); i++ {
		lb.Pick()
	}
}
