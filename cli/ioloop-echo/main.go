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

// Command ioloop-echo runs a TCP echo server on a single readiness
// dispatcher loop. All accepts, reads and writes happen from callbacks.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/ioloop/ioloop"
	"github.com/ioloop/ioloop/internal/log"
)

var (
	listenAddr string
	debug      bool

	logger = log.NewLogger("ioloop-echo")
)

func main() {
	command := &cobra.Command{
		Use:   "ioloop-echo",
		Short: "TCP echo server driven by a readiness dispatcher",
		Run:   run,
	}
	command.Flags().StringVarP(&listenAddr, "listen", "l", ":9000", "listen address")
	command.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	if err := command.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) {
	log.SetDebug(debug)

	lfd, err := listen(listenAddr)
	if err != nil {
		logger.Fatalf("listen on %s: %v", listenAddr, err)
	}
	defer unix.Close(lfd)

	dispatcher, err := ioloop.NewDispatcher(
		ioloop.WithErrorHandler(func(err error) {
			logger.Warnf("dispatch: %v", err)
		}),
	)
	if err != nil {
		logger.Fatalf("open dispatcher: %v", err)
	}

	if err = dispatcher.Register(lfd, ioloop.Readable, func(fd int, ev ioloop.Interest) error {
		return accept(dispatcher, fd)
	}); err != nil {
		logger.Fatalf("register listener: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dispatcher.Shutdown(ctx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("listening on %s", listenAddr)
	if err = dispatcher.Run(); err != nil {
		logger.Fatalf("loop: %v", err)
	}
}

func accept(dispatcher *ioloop.Dispatcher, lfd int) error {
	for {
		nfd, _, err := unix.Accept(lfd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if err = unix.SetNonblock(nfd, true); err != nil {
			_ = unix.Close(nfd)
			return err
		}
		logger.Debugf("accepted fd=%d", nfd)
		if err = dispatcher.Register(nfd, ioloop.Readable, echo(dispatcher)); err != nil {
			_ = unix.Close(nfd)
			return err
		}
	}
}

func echo(dispatcher *ioloop.Dispatcher) ioloop.Callback {
	buf := make([]byte, 4096)
	return func(fd int, ev ioloop.Interest) error {
		if ev&ioloop.Closed != 0 {
			logger.Debugf("closed fd=%d", fd)
			return unix.Close(fd)
		}
		for {
			n, err := unix.Read(fd, buf)
			if err != nil {
				if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
					return nil
				}
				if err == unix.EINTR {
					continue
				}
				_ = dispatcher.Unregister(fd)
				_ = unix.Close(fd)
				return err
			}
			if n == 0 {
				// peer finished
				_ = dispatcher.Unregister(fd)
				return unix.Close(fd)
			}
			if err = writeAll(fd, buf[:n]); err != nil {
				_ = dispatcher.Unregister(fd)
				_ = unix.Close(fd)
				return err
			}
		}
	}
}

func writeAll(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				continue
			}
			return err
		}
		b = b[n:]
	}
	return nil
}

func listen(addr string) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
