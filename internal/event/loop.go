// MIT License
// Copyright (c) 2025 Cezame
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

//go:build freebsd

// kqueue readiness loop bridging a nonblocking source fd to a nonblocking
// sink fd through the double-mapped ring
// Boucle de disponibilité kqueue reliant un fd source non bloquant à un fd
// puits non bloquant via l'anneau à double mapping
//
// Each side is enabled only when the ring can serve it: READ needs at
// least snaplen bytes free so the kernel never hands us a truncated
// frame, WRITE needs a non-empty ring. EV_DISPATCH disables an entry
// after one delivery, so a stalled side costs zero wakeups.
package event

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/cezamee/ngtools/internal/ring"
)

// Kind tells the dispatcher which side of the shuttle an event belongs
// to. Closed set on purpose: the loop owns exactly one source and one
// sink.
type Kind int

const (
	// DataReadable: the capture socket has frames for the ring.
	DataReadable Kind = iota
	// SinkWritable: the output stream can drain the ring.
	SinkWritable
)

// Loop shuttles bytes source -> ring -> sink, single threaded. The only
// suspension point is the kevent(2) wait.
type Loop struct {
	kq      int
	ring    *ring.Ring
	snaplen uint32

	source int // readable side / côté lisible
	sink   int // writable side / côté inscriptible

	eof bool // source peer closed, drain and leave / source fermée, drainer et sortir

	// Stop arrives from the signal goroutine; the user event wakes the
	// kevent wait so the flag is seen at once.
	stopped atomic.Bool

	// SIGINFO wants these from another goroutine, hence atomics.
	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
}

// New registers both fds with the kqueue, disabled; Run flips them on and
// off per iteration. The ring must hold at least one snaplen-sized frame
// or READ could never be enabled.
func New(r *ring.Ring, snaplen uint32, source, sink int) (*Loop, error) {
	if snaplen == 0 {
		// a zero-length window would turn read(2)'s 0 into a bogus EOF
		return nil, errors.New("event: snaplen must be positive")
	}
	if r.Capacity() < snaplen {
		return nil, errors.Errorf(
			"event: ring capacity %d below snaplen %d", r.Capacity(), snaplen)
	}

	kq, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(err, "event: kqueue")
	}

	l := &Loop{kq: kq, ring: r, snaplen: snaplen, source: source, sink: sink}

	var regs [3]unix.Kevent_t
	unix.SetKevent(&regs[0], source, unix.EVFILT_READ, unix.EV_ADD|unix.EV_DISABLE)
	unix.SetKevent(&regs[1], sink, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_DISABLE)
	unix.SetKevent(&regs[2], 0, unix.EVFILT_USER, unix.EV_ADD|unix.EV_CLEAR)

	for {
		_, err = unix.Kevent(kq, regs[:], nil, nil)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		unix.Close(kq)
		return nil, errors.Wrap(err, "event: register")
	}
	return l, nil
}

// Close releases the kqueue. The source and sink fds belong to the caller.
func (l *Loop) Close() error {
	if l == nil || l.kq == -1 {
		return nil
	}
	err := unix.Close(l.kq)
	l.kq = -1
	return err
}

// Stop asks Run, from any goroutine, to return nil at the next wakeup.
// The fds and the ring stay valid until the caller tears them down.
func (l *Loop) Stop() {
	if l == nil || l.kq == -1 {
		return
	}
	l.stopped.Store(true)
	var kev unix.Kevent_t
	unix.SetKevent(&kev, 0, unix.EVFILT_USER, 0)
	kev.Fflags = unix.NOTE_TRIGGER
	unix.Kevent(l.kq, []unix.Kevent_t{kev}, nil, nil)
}

// Stats returns total bytes read from the source and written to the sink.
func (l *Loop) Stats() (in, out uint64) {
	// out before in: in only grows, so the pair can never show out > in
	out = l.bytesOut.Load()
	in = l.bytesIn.Load()
	return in, out
}

// Run blocks until the source reports end of stream (clean, after the
// ring is drained) or an unrecoverable I/O error. Signals interrupt the
// wait transparently.
func (l *Loop) Run() error {
	for {
		if l.stopped.Load() {
			return nil
		}
		if l.eof && l.ring.Empty() {
			return nil
		}

		var chg [2]unix.Kevent_t
		n := 0
		if !l.eof && l.ring.Free() >= l.snaplen {
			unix.SetKevent(&chg[n], l.source, unix.EVFILT_READ,
				unix.EV_ENABLE|unix.EV_DISPATCH)
			n++
		}
		if !l.ring.Empty() {
			unix.SetKevent(&chg[n], l.sink, unix.EVFILT_WRITE,
				unix.EV_ENABLE|unix.EV_DISPATCH)
			n++
		}
		// capacity >= snaplen, so a starved READ implies a non-empty ring
		if n == 0 {
			panic("event: loop stalled with no enabled side")
		}

		var ready [3]unix.Kevent_t
		nev, err := unix.Kevent(l.kq, chg[:n], ready[:], nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "event: kevent wait")
		}

		for i := 0; i < nev; i++ {
			ev := &ready[i]
			if ev.Flags&unix.EV_ERROR != 0 {
				return errors.Wrap(unix.Errno(ev.Data), "event: registration")
			}
			if ev.Filter == unix.EVFILT_USER {
				continue // Stop wakeup, handled at the top of the loop
			}
			var herr error
			switch l.kind(ev) {
			case DataReadable:
				herr = l.readEdge()
			case SinkWritable:
				herr = l.writeEdge()
			}
			if herr != nil {
				return herr
			}
		}
	}
}

func (l *Loop) kind(ev *unix.Kevent_t) Kind {
	if int(ev.Ident) == l.source && ev.Filter == unix.EVFILT_READ {
		return DataReadable
	}
	return SinkWritable
}

// readEdge performs exactly one read into the producer window. EAGAIN just
// waits for the next edge; zero bytes means the snoop peer went away and
// the loop should drain and exit; anything else is fatal.
func (l *Loop) readEdge() error {
	n, err := unix.Read(l.source, l.ring.ReadBuffer())
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return nil
	case err != nil:
		return errors.Wrap(err, "event: data socket read")
	case n == 0:
		l.eof = true
		return nil
	}
	l.ring.ReadAdvance(n)
	l.bytesIn.Add(uint64(n))
	return nil
}

// writeEdge performs exactly one write out of the consumer window. EPIPE
// means whoever consumes the capture died; that is fatal for the process.
func (l *Loop) writeEdge() error {
	n, err := unix.Write(l.sink, l.ring.WriteBuffer())
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return nil
	case err == unix.EPIPE:
		return errors.Wrap(err, "event: output peer closed")
	case err != nil:
		return errors.Wrap(err, "event: output write")
	}
	l.ring.WriteAdvance(n)
	l.bytesOut.Add(uint64(n))
	return nil
}
