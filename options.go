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

// ErrorHandler receives callback errors surfaced by a dispatcher. The
// error is always a *CallbackError. Handlers must not block the loop.
type ErrorHandler func(err error)

// Option .
type Option struct {
	f func(*options)
}

type options struct {
	errorHandler  ErrorHandler
	poll          Poll
	asyncDispatch bool
}

// WithErrorHandler registers the handler that receives callback errors
// and recovered panics. The default handler logs them.
func WithErrorHandler(h ErrorHandler) Option {
	return Option{func(op *options) {
		op.errorHandler = h
	}}
}

// WithAsyncDispatch runs callbacks through the task runner instead of
// inline on the loop goroutine. It trades the one-callback-at-a-time
// guarantee for throughput, callbacks must synchronize themselves.
func WithAsyncDispatch() Option {
	return Option{func(op *options) {
		op.asyncDispatch = true
	}}
}

// WithPoll injects the poll the dispatcher drives, mostly for tests.
// By default the dispatcher opens its own. The dispatcher takes
// ownership either way: Close closes the poll to stop the loop, so an
// injected poll must not be shared with another driver.
func WithPoll(p Poll) Option {
	return Option{func(op *options) {
		op.poll = p
	}}
}
