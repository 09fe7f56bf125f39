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

// Tap graph construction and the socket -> ring -> stdout shuttle
// Construction du graphe de capture et navette socket -> anneau -> stdout
package tap

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	cfg "github.com/cezamee/ngtools/internal/config"
	"github.com/cezamee/ngtools/internal/diag"
	"github.com/cezamee/ngtools/internal/event"
	"github.com/cezamee/ngtools/internal/jail"
	"github.com/cezamee/ngtools/internal/kld"
	"github.com/cezamee/ngtools/internal/netgraph"
	"github.com/cezamee/ngtools/internal/ring"
)

// hook name our socket node gives the snoop attachment
const snoopSideHook = "pcap"

// mbuf constants behind the kern.ipc.maxsockbuf derating
const (
	mclBytes = 2048
	mSize    = 256
)

// Options is everything the CLI decides.
type Options struct {
	LoadModules bool
	Jail        string
	Snaplen     int32
	Specs       []Spec
}

// Tap owns every kernel handle the capture needs. Acquisition order is
// ring, control context, tap node, kqueue; Close releases them in
// reverse on every path, fatal ones included.
type Tap struct {
	ring  *ring.Ring
	ctx   *netgraph.Context
	tapID uint32
	loop  *event.Loop
}

// New performs the whole construction protocol. Order matters
// throughout: modules before the jail switch, the jail switch before any
// node exists, snaplen before the snoop hook comes up.
func New(opts Options) (*Tap, error) {
	if opts.LoadModules {
		for _, m := range []string{"ng_socket", "ng_pcap"} {
			if err := kld.EnsureLoaded(m); err != nil {
				return nil, diag.WithCode(diag.ExOSErr, err)
			}
		}
	}

	if opts.Jail != "" {
		jid, err := jail.ID(opts.Jail)
		if err != nil {
			return nil, diag.WithCode(diag.ExNoHost, err)
		}
		if err := jail.Attach(jid); err != nil {
			return nil, diag.WithCode(diag.ExOSErr, err)
		}
	}

	// room for three full frames so a slow stdout does not immediately
	// throttle the read side
	r, err := ring.New(ring.SizeLog2For(3 * uint(opts.Snaplen)))
	if err != nil {
		return nil, diag.WithCode(diag.ExOSErr,
			errors.Wrap(err, "unable to initialize buffer"))
	}
	t := &Tap{ring: r}

	t.ctx, err = netgraph.NewContext(true)
	if err != nil {
		t.Close()
		return nil, diag.WithCode(diag.ExOSErr, err)
	}

	for i, s := range opts.Specs {
		t.tapID, err = t.ctx.ConnectSource(t.tapID, i, s.Node, s.Hook)
		if err != nil {
			t.Close()
			return nil, diag.WithCode(diag.ExDataErr, err)
		}
		if err := t.ctx.SetSourceType(t.tapID, i, s.Layer); err != nil {
			t.Close()
			return nil, diag.WithCode(diag.ExDataErr, err)
		}
	}

	// the node snapshots snaplen when snoop connects; order is load bearing
	if err := t.ctx.SetSnaplen(t.tapID, opts.Snaplen); err != nil {
		t.Close()
		return nil, diag.WithCode(diag.ExDataErr, err)
	}
	if err := t.ctx.ConnectSnoop(t.tapID, snoopSideHook); err != nil {
		t.Close()
		return nil, diag.WithCode(diag.ExDataErr, err)
	}

	if err := t.prepareDataSocket(); err != nil {
		t.Close()
		return nil, err
	}
	for _, fd := range []int{t.ctx.DataFD(), unix.Stdout} {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Close()
			return nil, diag.WithCode(diag.ExOSErr,
				errors.Wrap(err, "fcntl: can't set O_NONBLOCK"))
		}
	}

	t.loop, err = event.New(t.ring, uint32(opts.Snaplen), t.ctx.DataFD(), unix.Stdout)
	if err != nil {
		t.Close()
		return nil, diag.WithCode(diag.ExOSErr, err)
	}
	return t, nil
}

// prepareDataSocket grows the receive buffer toward the system maximum,
// derated by the mbuf overhead the sysctl value does not account for.
func (t *Tap) prepareDataSocket() error {
	maxsb, err := unix.SysctlUint64("kern.ipc.maxsockbuf")
	if err != nil {
		return diag.WithCode(diag.ExOSErr,
			errors.Wrap(err, "can't get 'kern.ipc.maxsockbuf' value"))
	}
	sbsz := int(maxsb * mclBytes / (mSize + mclBytes))
	if err := unix.SetsockoptInt(t.ctx.DataFD(),
		unix.SOL_SOCKET, unix.SO_RCVBUF, sbsz); err != nil {
		return diag.WithCode(diag.ExOSErr, errors.Wrap(err, "can't set RX buffer size"))
	}
	return nil
}

// Run shuttles until the snoop peer disappears or an I/O error ends it.
func (t *Tap) Run() error {
	if err := t.loop.Run(); err != nil {
		return diag.WithCode(diag.ExOSErr, err)
	}
	return nil
}

// Stop makes Run return cleanly. Safe from a signal goroutine; all the
// kernel handles stay alive until Close.
func (t *Tap) Stop() {
	if t == nil || t.loop == nil {
		return
	}
	t.loop.Stop()
}

// Stats reports bytes from the data socket, bytes to stdout, and how
// many sit in the ring between them. Safe from a signal goroutine.
func (t *Tap) Stats() (in, out, buffered uint64) {
	in, out = t.loop.Stats()
	return in, out, in - out
}

// Close releases in reverse acquisition order, warns instead of failing,
// and may be called at any stage of construction and more than once.
func (t *Tap) Close() {
	if t == nil {
		return
	}
	if t.loop != nil {
		t.loop.Close()
		t.loop = nil
	}
	if t.tapID != 0 && t.ctx != nil {
		// ng_pcap also self-destructs when it loses its snoop peer; this
		// just does not rely on it
		if err := t.ctx.Shutdown(t.tapID); err != nil {
			diag.Warnf("failed to shutdown node, try: ngctl shutdown %s",
				netgraph.IDPath(t.tapID))
		}
		t.tapID = 0
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
}
