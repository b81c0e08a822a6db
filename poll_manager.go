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
	"fmt"
	"sync"
)

func newManager(numLoops int) *manager {
	m := new(manager)
	_ = m.SetLoadBalance(RoundRobin)
	_ = m.SetNumLoops(numLoops)
	return m
}

// manager runs the shared polls handed out by PickPoll. Polls are
// opened lazily on the first Pick.
type manager struct {
	NumLoops int
	balance  loadbalance
	polls    []Poll
	mu       sync.Mutex
}

// SetNumLoops will return an error when numLoops < 1.
func (m *manager) SetNumLoops(numLoops int) error {
	if numLoops < 1 {
		return fmt.Errorf("set invalid numLoops[%d]", numLoops)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NumLoops = numLoops
	if len(m.polls) == 0 {
		// not started yet, Pick will open them
		return nil
	}
	return m.resize(numLoops)
}

// resize applies the new poll count, m.mu must be held.
func (m *manager) resize(numLoops int) error {
	if numLoops < len(m.polls) {
		// close the redundant pollers
		polls := m.polls[:numLoops]
		for idx := numLoops; idx < len(m.polls); idx++ {
			if err := m.polls[idx].Close(); err != nil {
				logger.Warnf("poller close failed: %v", err)
			}
		}
		m.polls = polls
	} else {
		for idx := len(m.polls); idx < numLoops; idx++ {
			poll, err := openPoll()
			if err != nil {
				return err
			}
			m.polls = append(m.polls, poll)
			go m.run(poll)
		}
	}
	m.balance.Rebalance(m.polls)
	return nil
}

func (m *manager) run(poll Poll) {
	if err := poll.Wait(); err != nil {
		logger.Errorf("poller exited: %v", err)
	}
}

// SetLoadBalance sets the load balancing method.
func (m *manager) SetLoadBalance(lb LoadBalance) error {
	if m.balance != nil && m.balance.LoadBalance() == lb {
		return nil
	}
	m.balance = newLoadbalance(lb, m.polls)
	return nil
}

// Close releases all polls.
func (m *manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, poll := range m.polls {
		_ = poll.Close()
	}
	m.polls = nil
	return nil
}

// Reset closes all polls and reopens them, for tests and reloads.
func (m *manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, poll := range m.polls {
		_ = poll.Close()
	}
	m.polls = nil
	return m.resize(m.NumLoops)
}

// Pick selects a poll based on the load balancing method, opening the
// polls on first use.
func (m *manager) Pick() (Poll, error) {
	m.mu.Lock()
	if len(m.polls) == 0 {
		if err := m.resize(m.NumLoops); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	m.mu.Unlock()
	return m.balance.Pick(), nil
}
