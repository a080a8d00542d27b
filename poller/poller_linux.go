//go:build linux

// File: poller/poller_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) poller. Readiness is level-triggered; the wakeup
// primitive is an eventfd registered alongside the watched channels, so a
// producer goroutine interrupts a parked epoll_wait by bumping the
// counter.

package poller

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-eio/api"
)

type epollEntry struct {
	ch      api.Channel
	handler api.ReadyHandler
	read    bool
	write   bool
}

type epollPoller struct {
	epfd   int
	wakeFd int
	events []unix.EpollEvent

	mu     sync.Mutex
	table  map[int32]*epollEntry
	closed bool
}

var _ api.Poller = (*epollPoller)(nil)

func newPlatform(batch int) (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &epollPoller{
		epfd:   epfd,
		wakeFd: wakeFd,
		events: make([]unix.EpollEvent, batch),
		table:  make(map[int32]*epollEntry),
	}, nil
}

// channelFd extracts the descriptor; fd-based polling requires api.Fder.
func channelFd(ch api.Channel) (int32, error) {
	f, ok := ch.(api.Fder)
	if !ok {
		return 0, fmt.Errorf("poller: channel %T does not expose a descriptor", ch)
	}
	return int32(f.Fd()), nil
}

// Register adds the channel with no readiness armed. EPOLLRDHUP is always
// requested so a peer shutdown surfaces as a hangup even while read
// interest is disarmed.
func (p *epollPoller) Register(ch api.Channel, h api.ReadyHandler) error {
	if h == nil {
		return fmt.Errorf("poller: nil ready handler")
	}
	fd, err := channelFd(ch)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrPollerClosed
	}
	if _, dup := p.table[fd]; dup {
		return fmt.Errorf("poller: fd %d already registered", fd)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLRDHUP, Fd: fd}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	p.table[fd] = &epollEntry{ch: ch, handler: h}
	return nil
}

// Mod rearms read/write interest for a registered channel.
func (p *epollPoller) Mod(ch api.Channel, read, write bool) error {
	fd, err := channelFd(ch)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrPollerClosed
	}
	e, ok := p.table[fd]
	if !ok {
		return api.ErrNotRegistered
	}
	var events uint32 = unix.EPOLLRDHUP
	if read {
		events |= unix.EPOLLIN
	}
	if write {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: fd}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	e.read, e.write = read, write
	return nil
}

// Deregister removes the channel from the epoll set.
func (p *epollPoller) Deregister(ch api.Channel) error {
	fd, err := channelFd(ch)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrPollerClosed
	}
	if _, ok := p.table[fd]; !ok {
		return api.ErrNotRegistered
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	delete(p.table, fd)
	return nil
}

// Poll waits for readiness and dispatches handler callbacks on the calling
// goroutine. timeout < 0 blocks until an event or a Wakeup; timeout == 0
// returns immediately; a positive timeout is rounded up to the next
// millisecond. A signal interrupting the wait is not an error.
func (p *epollPoller) Poll(timeout time.Duration) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, api.ErrPollerClosed
	}
	p.mu.Unlock()

	ms := -1
	switch {
	case timeout == 0:
		ms = 0
	case timeout > 0:
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, p.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return 0, api.ErrPollerClosed
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		ev := p.events[i]
		if ev.Fd == int32(p.wakeFd) {
			p.drainWake()
			continue
		}
		// Snapshot under the lock, invoke without it: handlers may call
		// back into Mod/Deregister.
		p.mu.Lock()
		e, ok := p.table[ev.Fd]
		var h api.ReadyHandler
		var read, write bool
		if ok {
			h, read, write = e.handler, e.read, e.write
		}
		p.mu.Unlock()
		if !ok {
			continue
		}
		dispatched++
		if ev.Events&unix.EPOLLIN != 0 && read {
			h.OnReadable()
		}
		if ev.Events&unix.EPOLLOUT != 0 && write {
			h.OnWritable()
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			h.OnHangup(p.hangupReason(ev))
		}
	}
	return dispatched, nil
}

// hangupReason resolves the pending socket error for an EPOLLERR event;
// plain hangups report nil and the handler chooses the reason.
func (p *epollPoller) hangupReason(ev unix.EpollEvent) error {
	if ev.Events&unix.EPOLLERR == 0 {
		return nil
	}
	code, err := unix.GetsockoptInt(int(ev.Fd), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil || code == 0 {
		return nil
	}
	return fmt.Errorf("socket error: %w", unix.Errno(code))
}

// Wakeup bumps the eventfd counter, waking a parked Poll or priming the
// next one. A full counter means a wakeup is already pending, so EAGAIN is
// ignored.
func (p *epollPoller) Wakeup() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(p.wakeFd, buf[:])
}

// drainWake resets the eventfd counter so the next Poll blocks again.
func (p *epollPoller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakeFd, buf[:])
}

// Close releases the epoll and eventfd descriptors. The loop draining this
// poller must be stopped first; Close wakes a parked Poll, which then
// fails with api.ErrPollerClosed, but does not wait for it to return.
func (p *epollPoller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.Wakeup()
	err := unix.Close(p.epfd)
	if cerr := unix.Close(p.wakeFd); err == nil {
		err = cerr
	}
	return err
}
