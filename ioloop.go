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

// Package ioloop implements a readiness-driven I/O event dispatcher.
//
// A Dispatcher watches file descriptors for readable or writable
// readiness, reported by epoll on Linux and kqueue on the BSDs, and
// invokes the registered callback for each ready descriptor once per
// poll cycle. Callbacks own all data transfer: the dispatcher reports
// that an fd can be read or written without blocking and never touches
// the bytes itself.
//
// Callbacks run to completion on the loop goroutine, one at a time, so
// no locking is needed between them. A callback error or panic never
// stops the loop, it is routed to the dispatcher's error handler.
package ioloop

import (
	"context"
	"io"

	"github.com/ioloop/ioloop/internal/log"
)

var logger = log.NewLogger("ioloop")

// Config exposes global tuning parameters for the shared poll manager.
// Every field with a zero value keeps the default behavior.
type Config struct {
	// PollerNum is the number of shared polls behind PickPoll.
	PollerNum int
	// Runner executes off-loop work such as hup notifications, most of
	// the time a goroutine pool.
	Runner func(ctx context.Context, f func())
	// LoggerOutput redirects the library logger.
	LoggerOutput io.Writer
	// LoadBalance picks the shared poll handed out by PickPoll.
	LoadBalance LoadBalance
}
