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

// Kernel module probe and load via the kld/mod syscall family
// Sondage et chargement des modules noyau via les appels kld/mod
package kld

import (
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// struct module_stat: version, name[32], refs, id, modspecific data
const (
	maxModName  = 32
	modStatSize = 4 + maxModName + 4 + 4 + 4 /* pad */ + 8
	nameOffset  = 4
)

func sys1(trap uintptr, arg uintptr) int {
	r1, _, errno := unix.Syscall(trap, arg, 0, 0)
	if errno != 0 {
		return -1
	}
	return int(r1)
}

func modName(modid int) (string, bool) {
	var st [modStatSize]byte
	*(*int32)(unsafe.Pointer(&st[0])) = modStatSize
	_, _, errno := unix.Syscall(unix.SYS_MODSTAT,
		uintptr(modid), uintptr(unsafe.Pointer(&st[0])), 0)
	if errno != 0 {
		return "", false
	}
	raw := st[nameOffset : nameOffset+maxModName]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	name := string(raw[:n])
	// strip the bus prefix if present, e.g. "netgraph/ng_socket"
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name, true
}

// EnsureLoaded scans every file in the kernel for a module named
// `search` and kldloads it when absent. Inside a jail the load will be
// refused; nothing to do about that but report it.
func EnsureLoaded(search string) error {
	for fileid := sys1(unix.SYS_KLDNEXT, 0); fileid > 0; fileid = sys1(unix.SYS_KLDNEXT, uintptr(fileid)) {
		for modid := sys1(unix.SYS_KLDFIRSTMOD, uintptr(fileid)); modid > 0; modid = sys1(unix.SYS_MODFNEXT, uintptr(modid)) {
			if name, ok := modName(modid); ok && name == search {
				return nil
			}
		}
	}

	path, err := unix.BytePtrFromString(search)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_KLDLOAD, uintptr(unsafe.Pointer(path)), 0, 0)
	if errno != 0 {
		return errors.Wrapf(errno, "unable to load kernel module %q", search)
	}
	return nil
}
