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

// Package runner decouples how off-loop work is executed from the poll
// and dispatcher code paths.
package runner

import (
	"context"

	"github.com/bytedance/gopkg/util/gopool"
)

// RunTask runs f in the background, ctx is optional and passed to the
// underlying pool. Hup notifications and async dispatch go through it.
var RunTask func(ctx context.Context, f func()) = gopool.CtxGo

func goRunTask(ctx context.Context, f func()) {
	go f()
}

// UseGoRunTask replaces the goroutine pool with a plain `go f()`.
// Useful when callbacks are known not to grow their stacks.
func UseGoRunTask() {
	RunTask = goRunTask
}
