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

// Anonymous POSIX shared memory backing (SHM_ANON)
// Mémoire partagée POSIX anonyme (SHM_ANON)
package ring

import "golang.org/x/sys/unix"

// SHM_ANON is the reserved path value (char *)1.
const shmAnon = uintptr(1)

// anonBacking returns an fd for `size` bytes of unnamed shared memory.
// x/sys has no shm_open wrapper on FreeBSD so this goes straight to
// shm_open2(2), the syscall libc shm_open rides on.
func anonBacking(size uintptr) (int, error) {
	fd, _, errno := unix.Syscall6(unix.SYS_SHM_OPEN2,
		shmAnon, uintptr(unix.O_RDWR|unix.O_CLOEXEC), 0, 0, 0, 0)
	if errno != 0 {
		return -1, errno
	}
	if err := unix.Ftruncate(int(fd), int64(size)); err != nil {
		unix.Close(int(fd))
		return -1, err
	}
	return int(fd), nil
}
