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
	"errors"
	"fmt"
)

// Registration errors returned by Dispatcher.Register and friends.
// Use errors.Is to match them, the returned values may carry a suffix
// added via Exception.
var (
	// ErrWatchExists means the fd is already registered on the dispatcher.
	ErrWatchExists = errors.New("resource is already registered")
	// ErrInvalidWatch means the fd, interest or callback is unusable.
	ErrInvalidWatch = errors.New("resource registration is invalid")
	// ErrDispatcherClosed means the dispatcher has been closed or shut down.
	ErrDispatcherClosed = errors.New("dispatcher has been closed")
	// ErrLoopRunning means Run was called while the loop is already running.
	ErrLoopRunning = errors.New("dispatcher loop is already running")
	// ErrUnsupported means the operation is not available on this platform.
	ErrUnsupported = errors.New("operation is not supported")
)

// Exception returns an error with a suffix appended to the base error
// message. The result still matches the base error with errors.Is.
func Exception(err error, suffix string) error {
	if suffix == "" {
		return err
	}
	return &exception{err: err, suffix: suffix}
}

type exception struct {
	err    error
	suffix string
}

func (e *exception) Error() string {
	return e.err.Error() + " " + e.suffix
}

func (e *exception) Unwrap() error {
	return e.err
}

// CallbackError wraps an error returned, or a panic recovered, while a
// watch callback was running. It is delivered to the dispatcher's error
// handler and never terminates the loop.
type CallbackError struct {
	// FD is the watched descriptor, or -1 for submitted tasks.
	FD  int
	Err error
}

func (e *CallbackError) Error() string {
	if e.FD < 0 {
		return fmt.Sprintf("submitted task failed: %v", e.Err)
	}
	return fmt.Sprintf("callback failed on fd=%d: %v", e.FD, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
