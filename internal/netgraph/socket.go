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

// ng_socket(4) control/data context and the generic control RPCs
// Contexte contrôle/données ng_socket(4) et les RPC de contrôle génériques
//
// x/sys has no sockaddr_ng, so bind/connect/sendto/recvfrom go through
// raw syscalls with a hand-packed address. Control RPCs are synchronous
// and low volume: one send, zero or one recv, a single outstanding token.
package netgraph

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	cfg "github.com/cezamee/ngtools/internal/config"
)

// Context owns the control socket and, for capture use, the data socket
// associated with the same ng_socket node. A jail-side helper must build
// its own Context; sockets do not cross vnets.
type Context struct {
	ctrl  int
	data  int
	token uint32
}

// sockaddrNg packs struct sockaddr_ng for `path`: len, AF_NETGRAPH, then
// the NUL-terminated path.
func sockaddrNg(path string) []byte {
	sa := make([]byte, 2+len(path)+1)
	sa[0] = byte(len(sa))
	sa[1] = unix.AF_NETGRAPH
	copy(sa[2:], path)
	return sa
}

// NewContext creates the control socket, names its node ngctl<pid> the
// way ngctl(8) and friends do, and optionally associates a data socket.
func NewContext(withData bool) (*Context, error) {
	ctrl, err := unix.Socket(unix.AF_NETGRAPH, unix.SOCK_DGRAM, cfg.NgControl)
	if err != nil {
		return nil, errors.Wrap(err, "netgraph: control socket")
	}

	name := fmt.Sprintf("ngctl%d", os.Getpid())
	if err := ngBind(ctrl, sockaddrNg(name)); err != nil {
		unix.Close(ctrl)
		return nil, errors.Wrapf(err, "netgraph: bind control node %q", name)
	}

	c := &Context{ctrl: ctrl, data: -1}
	if withData {
		data, err := unix.Socket(unix.AF_NETGRAPH, unix.SOCK_DGRAM, cfg.NgData)
		if err != nil {
			c.Close()
			return nil, errors.Wrap(err, "netgraph: data socket")
		}
		// associate the data socket with the control node
		if err := ngConnect(data, sockaddrNg(NodePath(name))); err != nil {
			unix.Close(data)
			c.Close()
			return nil, errors.Wrap(err, "netgraph: associate data socket")
		}
		c.data = data
	}
	return c, nil
}

// Close releases both sockets. Safe to call more than once.
func (c *Context) Close() error {
	if c == nil {
		return nil
	}
	var err error
	if c.ctrl != -1 {
		err = unix.Close(c.ctrl)
		c.ctrl = -1
	}
	if c.data != -1 {
		if derr := unix.Close(c.data); err == nil {
			err = derr
		}
		c.data = -1
	}
	return err
}

// DataFD exposes the data socket for the readiness loop.
func (c *Context) DataFD() int { return c.data }

func ngBind(fd int, sa []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND,
		uintptr(fd), uintptr(unsafe.Pointer(&sa[0])), uintptr(len(sa)))
	if errno != 0 {
		return errno
	}
	return nil
}

func ngConnect(fd int, sa []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_CONNECT,
		uintptr(fd), uintptr(unsafe.Pointer(&sa[0])), uintptr(len(sa)))
	if errno != 0 {
		return errno
	}
	return nil
}

// SendMsg addresses one control message to `path`. Returns the token a
// reply will carry.
func (c *Context) SendMsg(path string, cookie, cmd uint32, payload []byte) (uint32, error) {
	if err := CheckPath(path); err != nil {
		return 0, err
	}
	c.token++
	msg := marshalMsg(c.token, cookie, cmd, payload)
	sa := sockaddrNg(path)
	_, _, errno := unix.Syscall6(unix.SYS_SENDTO,
		uintptr(c.ctrl),
		uintptr(unsafe.Pointer(&msg[0])), uintptr(len(msg)),
		0,
		uintptr(unsafe.Pointer(&sa[0])), uintptr(len(sa)))
	if errno != 0 {
		return 0, errno
	}
	return c.token, nil
}

// RecvMsg pulls one reply off the control socket.
func (c *Context) RecvMsg() (Header, []byte, error) {
	buf := make([]byte, 8192)
	n, _, errno := unix.Syscall6(unix.SYS_RECVFROM,
		uintptr(c.ctrl),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)),
		0, 0, 0)
	if errno != 0 {
		return Header{}, nil, errno
	}
	return parseMsg(buf[:n])
}

// sendRecv is the one-send one-recv shape every query RPC uses.
func (c *Context) sendRecv(path string, cookie, cmd uint32, payload []byte) ([]byte, error) {
	token, err := c.SendMsg(path, cookie, cmd, payload)
	if err != nil {
		return nil, err
	}
	hdr, data, err := c.RecvMsg()
	if err != nil {
		return nil, err
	}
	if hdr.Flags&flagResp == 0 || hdr.Token != token {
		return nil, fmt.Errorf("netgraph: reply token %d does not match request %d",
			hdr.Token, token)
	}
	return data, nil
}

// MkPeer creates a node of `typ` attached to the node at `path`: the
// existing node grows `ourHook`, the new node `peerHook`.
func (c *Context) MkPeer(path, typ, ourHook, peerHook string) error {
	if err := CheckHookName(ourHook); err != nil {
		return err
	}
	if err := CheckHookName(peerHook); err != nil {
		return err
	}
	_, err := c.SendMsg(path, cfg.GenericCookie, cfg.CmdMkPeer,
		mkPeerPayload(typ, ourHook, peerHook))
	return errors.Wrapf(err, "mkpeer %s at %q", typ, path)
}

// NodeID queries NODEINFO for the node a path lands on.
func (c *Context) NodeID(path string) (uint32, error) {
	data, err := c.sendRecv(path, cfg.GenericCookie, cfg.CmdNodeInfo, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "nodeinfo %q", path)
	}
	info, err := parseNodeInfo(data)
	if err != nil {
		return 0, err
	}
	if info.ID == 0 {
		// valid IDs start at 1
		return 0, fmt.Errorf("netgraph: node at %q reports id 0, presumed dead", path)
	}
	return info.ID, nil
}

// CreatePeerNode is MkPeer plus reading the newborn's id back through the
// hook it was created on.
func (c *Context) CreatePeerNode(atPath, typ, ourHook, peerHook string) (uint32, error) {
	if err := c.MkPeer(atPath, typ, ourHook, peerHook); err != nil {
		return 0, err
	}
	// one level of `node:hook` traverses to the new peer
	peerAt := atPath
	if n := len(peerAt); n > 1 && peerAt[n-1] == ':' {
		peerAt = peerAt[:n-1]
	}
	return c.NodeID(HookPath(peerAt, ourHook))
}

// Connect joins `ourHook` on the node at fromPath to `peerHook` on the
// node at toPath.
func (c *Context) Connect(fromPath, ourHook, toPath, peerHook string) error {
	if err := CheckHookName(ourHook); err != nil {
		return err
	}
	if err := CheckHookName(peerHook); err != nil {
		return err
	}
	if err := CheckPath(toPath); err != nil {
		return err
	}
	_, err := c.SendMsg(fromPath, cfg.GenericCookie, cfg.CmdConnect,
		connectPayload(toPath, ourHook, peerHook))
	return err
}

// NameNode assigns a global name to a node.
func (c *Context) NameNode(id uint32, name string) error {
	if err := CheckNodeName(name); err != nil {
		return err
	}
	_, err := c.SendMsg(IDPath(id), cfg.GenericCookie, cfg.CmdName, namePayload(name))
	return errors.Wrapf(err, "name %s %q", IDPath(id), name)
}

// ListHooks returns the node's own info and one entry per connected hook.
func (c *Context) ListHooks(id uint32) (NodeInfo, []LinkInfo, error) {
	data, err := c.sendRecv(IDPath(id), cfg.GenericCookie, cfg.CmdListHooks, nil)
	if err != nil {
		return NodeInfo{}, nil, errors.Wrapf(err, "listhooks %s", IDPath(id))
	}
	return parseHookList(data)
}

// RmHook disconnects one hook of a node.
func (c *Context) RmHook(id uint32, hook string) error {
	if err := CheckHookName(hook); err != nil {
		return err
	}
	_, err := c.SendMsg(IDPath(id), cfg.GenericCookie, cfg.CmdRmHook, rmHookPayload(hook))
	return errors.Wrapf(err, "rmhook %q from %s", hook, IDPath(id))
}

// SetParam sends a node-type specific control, typed by its cookie.
func (c *Context) SetParam(id uint32, cookie, cmd uint32, payload []byte) error {
	_, err := c.SendMsg(IDPath(id), cookie, cmd, payload)
	return err
}

// Shutdown asks a node to tear itself down. Callers on cleanup paths
// treat failure as a warning; the node may already be gone.
func (c *Context) Shutdown(id uint32) error {
	_, err := c.SendMsg(IDPath(id), cfg.GenericCookie, cfg.CmdShutdown, nil)
	return errors.Wrapf(err, "shutdown %s", IDPath(id))
}
