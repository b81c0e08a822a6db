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
	"golang.org/x/sys/unix"
)

// GetSysFdPairs creates and returns the fds of a connected stream
// socketpair, mainly for tests and examples.
func GetSysFdPairs() (r, w int) {
	fds, _ := unix.Socketpair(unix.AF_LOCAL, unix.SOCK_STREAM, 0)
	_ = setNonblock(fds[0])
	_ = setNonblock(fds[1])
	return fds[0], fds[1]
}

// setNonblock switches the fd to non-blocking mode. Watched fds should
// be non-blocking, readiness only means the next call will not block.
func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
