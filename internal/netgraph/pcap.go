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

// Typed client for ng_pcap(4)
// Client typé pour ng_pcap(4)
package netgraph

import (
	"fmt"

	"github.com/pkg/errors"

	cfg "github.com/cezamee/ngtools/internal/config"
)

// SourceHook names the numbered src hook for a capture position.
func SourceHook(snum int) string {
	return fmt.Sprintf("%s%d", cfg.PcapHookSource, snum)
}

// ConnectSource wires capture position snum to `node:hook`. With tapID
// zero there is no tap node yet, so the first source creates it as a
// peer of its own node; either way the tap's id comes back.
func (c *Context) ConnectSource(tapID uint32, snum int, node, hook string) (uint32, error) {
	if err := CheckNodeName(node); err != nil {
		return 0, err
	}
	if err := CheckHookName(hook); err != nil {
		return 0, err
	}

	src := SourceHook(snum)
	if tapID == 0 {
		id, err := c.CreatePeerNode(NodePath(node), cfg.PcapNodeType, hook, src)
		return id, errors.Wrapf(err, "create %s node at %s", cfg.PcapNodeType,
			HookPath(node, hook))
	}
	err := c.Connect(IDPath(tapID), src, NodePath(node), hook)
	return tapID, errors.Wrapf(err, "connect `%s%s' to `%s'",
		IDPath(tapID), src, HookPath(node, hook))
}

// SetSourceType tags a src hook with its link layer so the emitted
// records carry the right encapsulation.
func (c *Context) SetSourceType(tapID uint32, snum int, layer string) error {
	if len(layer) >= cfg.PcapPktTypeLen {
		return fmt.Errorf("netgraph: packet type %q too long", layer)
	}
	b := make([]byte, cfg.HookSiz+cfg.PcapPktTypeLen)
	putCStr(b[:cfg.HookSiz], SourceHook(snum))
	putCStr(b[cfg.HookSiz:], layer)
	err := c.SetParam(tapID, cfg.PcapCookie, cfg.PcapSetSourceType, b)
	return errors.Wrapf(err, "set `%s%s' to `%s'", IDPath(tapID), SourceHook(snum), layer)
}

// SetSnaplen configures the per-record capture limit. The node snapshots
// it when the snoop hook comes up, so this must run first.
func (c *Context) SetSnaplen(tapID uint32, snaplen int32) error {
	b := make([]byte, 4)
	ne.PutUint32(b, uint32(snaplen))
	err := c.SetParam(tapID, cfg.PcapCookie, cfg.PcapSetConfig, b)
	return errors.Wrapf(err, "%s unable to set snaplen=%d", IDPath(tapID), snaplen)
}

// ConnectSnoop attaches the tap's snoop hook to our own socket node, so
// the capture stream lands on the data socket. Addressed to `.` -- the
// one place the self path is required.
func (c *Context) ConnectSnoop(tapID uint32, ourHook string) error {
	err := c.Connect(SelfPath, ourHook, IDPath(tapID), cfg.PcapHookSnoop)
	return errors.Wrapf(err, "connect `.:%s' to `%s%s'", ourHook,
		IDPath(tapID), cfg.PcapHookSnoop)
}
