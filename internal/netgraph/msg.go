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

// ng_mesg wire codec and control payload layouts
// Codec filaire ng_mesg et structures de charge utile de contrôle
//
// Everything here mirrors kernel ABI structs byte for byte, native
// endianness, fixed-size NUL-padded strings. No syscalls, so the codec
// tests run on any platform.
package netgraph

import (
	"encoding/binary"
	"fmt"

	cfg "github.com/cezamee/ngtools/internal/config"
)

var ne = binary.NativeEndian

// Header is the fixed ng_mesg preamble in front of every control message.
type Header struct {
	Version    uint8
	Arglen     uint32
	Cmd        uint32
	Flags      uint32
	Token      uint32
	TypeCookie uint32
	CmdStr     string
}

// response flag in Header.Flags
const flagResp = 0x1

// kernel struct sizes for the payloads we speak
const (
	pathSizWire  = 512 // NG_PATHSIZ as the kernel sizes ngm_connect.path
	nodeInfoSize = cfg.NodeSiz + cfg.TypeSiz + 4 + 4
	linkInfoSize = cfg.HookSiz + cfg.HookSiz + nodeInfoSize
	mkPeerSize   = cfg.TypeSiz + cfg.HookSiz + cfg.HookSiz
	connectSize  = pathSizWire + cfg.HookSiz + cfg.HookSiz
)

// putCStr writes s NUL-padded into a fixed window, which must fit.
func putCStr(dst []byte, s string) {
	if len(s) >= len(dst) {
		panic(fmt.Sprintf("netgraph: %q overflows %d byte field", s, len(dst)))
	}
	copy(dst, s)
	for i := len(s); i < len(dst); i++ {
		dst[i] = 0
	}
}

// cStr reads a NUL-terminated string out of a fixed window.
func cStr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// marshalMsg lays out header + payload ready for sendto(2).
func marshalMsg(token, cookie, cmd uint32, payload []byte) []byte {
	b := make([]byte, cfg.MsgHeaderSize+len(payload))
	b[0] = cfg.MsgVersion
	ne.PutUint32(b[4:], uint32(len(payload)))
	ne.PutUint32(b[8:], cmd)
	ne.PutUint32(b[12:], 0)
	ne.PutUint32(b[16:], token)
	ne.PutUint32(b[20:], cookie)
	// cmdstr is cosmetic (ngctl shows it); leave it zeroed
	copy(b[cfg.MsgHeaderSize:], payload)
	return b
}

// parseMsg splits a received message into header and payload.
func parseMsg(b []byte) (Header, []byte, error) {
	if len(b) < cfg.MsgHeaderSize {
		return Header{}, nil, fmt.Errorf("netgraph: short message: %d bytes", len(b))
	}
	h := Header{
		Version:    b[0],
		Arglen:     ne.Uint32(b[4:]),
		Cmd:        ne.Uint32(b[8:]),
		Flags:      ne.Uint32(b[12:]),
		Token:      ne.Uint32(b[16:]),
		TypeCookie: ne.Uint32(b[20:]),
		CmdStr:     cStr(b[24 : 24+cfg.CmdStrSiz]),
	}
	if h.Version != cfg.MsgVersion {
		return Header{}, nil, fmt.Errorf("netgraph: version %d, want %d", h.Version, cfg.MsgVersion)
	}
	data := b[cfg.MsgHeaderSize:]
	if uint32(len(data)) < h.Arglen {
		return Header{}, nil, fmt.Errorf("netgraph: truncated payload: %d of %d bytes",
			len(data), h.Arglen)
	}
	return h, data[:h.Arglen], nil
}

// NodeInfo mirrors struct nodeinfo.
type NodeInfo struct {
	Name  string
	Type  string
	ID    uint32
	Hooks uint32
}

func parseNodeInfo(b []byte) (NodeInfo, error) {
	if len(b) < nodeInfoSize {
		return NodeInfo{}, fmt.Errorf("netgraph: short nodeinfo: %d bytes", len(b))
	}
	return NodeInfo{
		Name:  cStr(b[:cfg.NodeSiz]),
		Type:  cStr(b[cfg.NodeSiz : cfg.NodeSiz+cfg.TypeSiz]),
		ID:    ne.Uint32(b[cfg.NodeSiz+cfg.TypeSiz:]),
		Hooks: ne.Uint32(b[cfg.NodeSiz+cfg.TypeSiz+4:]),
	}, nil
}

// LinkInfo mirrors struct linkinfo: one hook and what hangs off it.
type LinkInfo struct {
	OurHook  string
	PeerHook string
	Peer     NodeInfo
}

// parseHookList decodes a NGM_LISTHOOKS response: the node itself, then
// one linkinfo per connected hook.
func parseHookList(b []byte) (NodeInfo, []LinkInfo, error) {
	self, err := parseNodeInfo(b)
	if err != nil {
		return NodeInfo{}, nil, err
	}
	b = b[nodeInfoSize:]
	links := make([]LinkInfo, 0, self.Hooks)
	for i := uint32(0); i < self.Hooks; i++ {
		if len(b) < linkInfoSize {
			return NodeInfo{}, nil, fmt.Errorf("netgraph: hooklist truncated at link %d", i)
		}
		peer, err := parseNodeInfo(b[2*cfg.HookSiz:])
		if err != nil {
			return NodeInfo{}, nil, err
		}
		links = append(links, LinkInfo{
			OurHook:  cStr(b[:cfg.HookSiz]),
			PeerHook: cStr(b[cfg.HookSiz : 2*cfg.HookSiz]),
			Peer:     peer,
		})
		b = b[linkInfoSize:]
	}
	return self, links, nil
}

// payload builders / constructeurs de charge utile

func mkPeerPayload(typ, ourHook, peerHook string) []byte {
	b := make([]byte, mkPeerSize)
	putCStr(b[:cfg.TypeSiz], typ)
	putCStr(b[cfg.TypeSiz:cfg.TypeSiz+cfg.HookSiz], ourHook)
	putCStr(b[cfg.TypeSiz+cfg.HookSiz:], peerHook)
	return b
}

func connectPayload(path, ourHook, peerHook string) []byte {
	b := make([]byte, connectSize)
	putCStr(b[:pathSizWire], path)
	putCStr(b[pathSizWire:pathSizWire+cfg.HookSiz], ourHook)
	putCStr(b[pathSizWire+cfg.HookSiz:], peerHook)
	return b
}

func namePayload(name string) []byte {
	b := make([]byte, cfg.NodeSiz)
	putCStr(b, name)
	return b
}

func rmHookPayload(hook string) []byte {
	b := make([]byte, cfg.HookSiz)
	putCStr(b, hook)
	return b
}

// IDPath renders a node ID in the absolute `[XXXXXXXX]:` form.
func IDPath(id uint32) string {
	return fmt.Sprintf(cfg.IDFmt, id)
}

// NodePath renders a node name as a path (`name:`).
func NodePath(name string) string {
	return name + ":"
}

// HookPath renders the `node:hook` one-level form.
func HookPath(node, hook string) string {
	return node + ":" + hook
}

// SelfPath addresses the sending node itself.
const SelfPath = "."

// CheckNodeName rejects names the kernel would truncate or misparse.
func CheckNodeName(name string) error {
	if name == "" || len(name) > cfg.NodeLen {
		return fmt.Errorf("netgraph: node name %q exceeds %d characters", name, cfg.NodeLen)
	}
	return nil
}

// CheckHookName does the same for hook names.
func CheckHookName(hook string) error {
	if hook == "" || len(hook) > cfg.HookLen {
		return fmt.Errorf("netgraph: hook name %q exceeds %d characters", hook, cfg.HookLen)
	}
	return nil
}

// CheckPath bounds a full path string.
func CheckPath(path string) error {
	if path == "" || len(path) > cfg.PathLen {
		return fmt.Errorf("netgraph: path %q exceeds %d characters", path, cfg.PathLen)
	}
	return nil
}
