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

// Typed client for ng_wormhole(4)
// Client typé pour ng_wormhole(4)
package netgraph

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	cfg "github.com/cezamee/ngtools/internal/config"
)

// Collapse-connect outcomes the portal reports specially.
var (
	ErrNotOpened = errors.New("not opened")
	ErrWouldLoop = errors.New("would produce two connected wormholes in the same vnet")
)

// temporary hook holding a fresh wormhole onto our socket node until its
// far side is open
const wormholeTmpHook = "tmp"

// CreateWormhole hangs a new wormhole off our socket node. It stays
// connected there or it would shut itself down; OpenWormhole drops the
// tether once the far side holds it.
func (c *Context) CreateWormhole() (uint32, error) {
	id, err := c.CreatePeerNode(SelfPath, cfg.WormholeNodeType,
		wormholeTmpHook, cfg.WormholeHook)
	return id, errors.Wrapf(err, "create %s", cfg.WormholeNodeType)
}

// OpenWormhole opens the wormhole's far side into `jail`, discovers the
// far node's id off the hook list, and removes our temporary tether.
func (c *Context) OpenWormhole(id uint32, jail string) (uint32, error) {
	payload := append([]byte(jail), 0)
	if err := c.SetParam(id, cfg.WormholeCookie, cfg.WormholeOpen, payload); err != nil {
		return 0, errors.Wrapf(err, "open wormhole in `%s'", jail)
	}

	// two hooks now: our socket and the far wormhole
	_, links, err := c.ListHooks(id)
	if err != nil {
		return 0, errors.Wrap(err, "wormhole presumed dead")
	}
	var far uint32
	for _, l := range links {
		if l.Peer.Type == cfg.WormholeNodeType {
			far = l.Peer.ID
			break
		}
	}
	if far == 0 {
		return 0, errors.Errorf("wormhole %s has no far side after open", IDPath(id))
	}

	if err := c.RmHook(id, cfg.WormholeHook); err != nil {
		return 0, err
	}
	return far, nil
}

// ConnectWormhole joins the wormhole's warp hook to `peer:peerHook`.
// Connecting warp to warp is the collapse the two-jail portal performs;
// the kernel refuses it with EINVAL when the peer's far side was never
// opened and with EDOOFUS when the collapse would leave both ends in one
// vnet.
func (c *Context) ConnectWormhole(id uint32, peer, peerHook string) error {
	err := c.Connect(IDPath(id), cfg.WormholeHook, NodePath(peer), peerHook)
	if err == nil {
		return nil
	}
	if peerHook == cfg.WormholeHook {
		switch errors.Cause(err) {
		case unix.EINVAL:
			return errors.Wrapf(ErrNotOpened, "unable to connect to `%s'",
				HookPath(peer, peerHook))
		case unix.EDOOFUS:
			return ErrWouldLoop
		}
	}
	return errors.Wrapf(err, "unable to connect `%s%s' to `%s'",
		IDPath(id), cfg.WormholeHook, HookPath(peer, peerHook))
}
