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
	"io"
	"runtime"

	"github.com/ioloop/ioloop/internal/log"
	"github.com/ioloop/ioloop/internal/runner"
)

// pollmanager manages the shared polls behind PickPoll.
var pollmanager = newManager(runtime.GOMAXPROCS(0)/20 + 1)

// Initialize opens the shared polls actively. By default they are
// opened lazily on the first PickPoll. Safe to call multiple times.
func Initialize() {
	_, _ = pollmanager.Pick()
}

// Configure the package-level behaviors. Call it from an init function,
// before any dispatcher or shared poll is created.
func Configure(config Config) (err error) {
	if config.PollerNum > 0 {
		if err = pollmanager.SetNumLoops(config.PollerNum); err != nil {
			return err
		}
	}
	if config.Runner != nil {
		runner.RunTask = config.Runner
	}
	if config.LoggerOutput != nil {
		log.SetOutput(config.LoggerOutput)
	}
	if config.LoadBalance >= 0 {
		if err = pollmanager.SetLoadBalance(config.LoadBalance); err != nil {
			return err
		}
	}
	return nil
}

// SetNumLoops sets the number of shared polls. Most callers do not need
// more than one per 20 cores.
//
// Deprecated: use Configure instead.
func SetNumLoops(numLoops int) error {
	return pollmanager.SetNumLoops(numLoops)
}

// SetLoadBalance sets the shared poll picking method.
//
// Deprecated: use Configure instead.
func SetLoadBalance(lb LoadBalance) error {
	return pollmanager.SetLoadBalance(lb)
}

// SetLoggerOutput sets the logger output target.
//
// Deprecated: use Configure instead.
func SetLoggerOutput(w io.Writer) {
	log.SetOutput(w)
}

// PickPoll returns a running shared poll for callers using the Watch
// and Control layer directly, bypassing the Dispatcher.
func PickPoll() (Poll, error) {
	return pollmanager.Pick()
}
