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

// jail(2) reference resolution and process attachment
// Résolution des références jail(2) et attachement du processus
//
// x/sys wraps neither jail_get(2) nor jail_attach(2); both are iovec
// parameter lists to raw syscalls, same shape libjail uses.
package jail

import (
	"strconv"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// iovList builds the alternating name/value iovec pairs jail_get wants.
type iovList []unix.Iovec

func (l *iovList) add(key string, val []byte) {
	k := append([]byte(key), 0)
	var ki, vi unix.Iovec
	ki.Base = &k[0]
	ki.SetLen(len(k))
	vi.Base = &val[0]
	vi.SetLen(len(val))
	*l = append(*l, ki, vi)
}

func jailGet(iovs iovList) (int, error) {
	jid, _, errno := unix.Syscall(unix.SYS_JAIL_GET,
		uintptr(unsafe.Pointer(&iovs[0])), uintptr(len(iovs)), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(jid), nil
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ID resolves a jail reference, name or numeric, to its jid. Numeric
// references are verified against the kernel too: a stale jid must not
// silently address the wrong vnet.
func ID(ref string) (int, error) {
	errmsg := make([]byte, 256)
	var iovs iovList

	if jid, err := strconv.Atoi(ref); err == nil {
		if jid == 0 {
			return 0, nil // the system itself / le système lui-même
		}
		val := make([]byte, 4)
		*(*int32)(unsafe.Pointer(&val[0])) = int32(jid)
		iovs.add("jid", val)
	} else {
		iovs.add("name", append([]byte(ref), 0))
	}
	iovs.add("errmsg", errmsg)

	jid, err := jailGet(iovs)
	if err != nil {
		if msg := cstr(errmsg); msg != "" {
			return -1, errors.Wrapf(err, "jail %q: %s", ref, msg)
		}
		return -1, errors.Wrapf(err, "jail %q not found", ref)
	}
	return jid, nil
}

// Attach moves the whole process into the jail (and its vnet). Anything
// that must stay in the original vnet has to be created first.
func Attach(jid int) error {
	_, _, errno := unix.Syscall(unix.SYS_JAIL_ATTACH, uintptr(jid), 0, 0)
	if errno != 0 {
		return errors.Wrapf(errno, "cannot attach to jail (jid=%d)", jid)
	}
	return nil
}
