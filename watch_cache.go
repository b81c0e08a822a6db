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
	"runtime"
	"sync/atomic"
)

const watchBlock = 64

func newWatchCache() *watchCache {
	return &watchCache{
		cache:    make([]*Watch, 0, 1024),
		freelist: make([]int32, 0, 1024),
	}
}

// watchCache keeps watches alive across register/unregister churn to
// reduce GC pressure. Freed watches are parked on a freelist and only
// recycled by the poller between dispatch cycles, so a callback still
// in flight never observes its watch being reset.
type watchCache struct {
	locked int32
	first  *Watch
	cache  []*Watch
	// freelist stores freeable watch indexes, the real recycle action
	// happens in free.
	freelist   []int32
	freelocked int32
}

func (c *watchCache) alloc() *Watch {
	lock(&c.locked)
	if c.first == nil {
		index := int32(len(c.cache))
		for i := 0; i < watchBlock; i++ {
			w := &Watch{index: index}
			c.cache = append(c.cache, w)
			w.next = c.first
			c.first = w
			index++
		}
	}
	w := c.first
	c.first = w.next
	unlock(&c.locked)
	return w
}

// freeable parks the watch for recycling. Safe to call from inside the
// watch's own callback.
func (c *watchCache) freeable(w *Watch) {
	lock(&c.freelocked)
	c.freelist = append(c.freelist, w.index)
	unlock(&c.freelocked)
}

// free recycles parked watches. Must only run on the poll goroutine
// between dispatch cycles.
func (c *watchCache) free() {
	lock(&c.freelocked)
	defer unlock(&c.freelocked)
	if len(c.freelist) == 0 {
		return
	}

	lock(&c.locked)
	for _, idx := range c.freelist {
		w := c.cache[idx]
		w.reset()
		w.next = c.first
		c.first = w
	}
	c.freelist = c.freelist[:0]
	unlock(&c.locked)
}

func lock(locked *int32) {
	for !atomic.CompareAndSwapInt32(locked, 0, 1) {
		runtime.Gosched()
	}
}

func unlock(locked *int32) {
	atomic.StoreInt32(locked, 0)
}
