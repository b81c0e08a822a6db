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

//go:build !(darwin || netbsd || freebsd || openbsd || dragonfly || linux)
// +build !darwin,!netbsd,!freebsd,!openbsd,!dragonfly,!linux

package ioloop

import "context"

// Callback handles a readiness notification for a registered fd.
type Callback func(fd int, ev Interest) error

// Dispatcher is not available on this platform, there is no readiness
// poller to drive it. NewDispatcher reports ErrUnsupported.
type Dispatcher struct{}

func NewDispatcher(ops ...Option) (*Dispatcher, error) {
	return nil, Exception(ErrUnsupported, "no readiness poller on this platform")
}

func (d *Dispatcher) Register(fd int, interest Interest, cb Callback) error {
	return ErrUnsupported
}

func (d *Dispatcher) Unregister(fd int) error { return ErrUnsupported }

func (d *Dispatcher) Modify(fd int, interest Interest) error { return ErrUnsupported }

func (d *Dispatcher) Run() error { return ErrUnsupported }

func (d *Dispatcher) Submit(fn func()) error { return ErrUnsupported }

func (d *Dispatcher) Close() error { return ErrUnsupported }

func (d *Dispatcher) Shutdown(ctx context.Context) error { return ErrUnsupported }

// Initialize is a no-op on this platform.
func Initialize() {}

// Configure reports ErrUnsupported on this platform.
func Configure(config Config) error { return ErrUnsupported }

// PickPoll reports ErrUnsupported on this platform.
func PickPoll() (Poll, error) { return nil, ErrUnsupported }
