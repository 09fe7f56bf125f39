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

//go:build freebsd || linux

// Double-mapped SPSC byte ring for zero-copy nonblocking I/O
// Anneau d'octets SPSC à double mapping pour l'I/O non bloquante zéro-copie
//
// The same physical pages are mapped twice back to back, so the window at
// any offset is contiguous across the wrap boundary: one read(2) fills it,
// one write(2) drains it, no scatter/gather, no bounce buffer.
// Les mêmes pages physiques sont mappées deux fois à la suite : la fenêtre
// à n'importe quel décalage est contiguë à travers le point de bouclage.
package ring

import (
	"fmt"
	"math/bits"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrSizeRange reports a page count log2 the 32-bit counters cannot index.
type ErrSizeRange struct {
	SizeLog2 uint
	Max      uint
}

func (e *ErrSizeRange) Error() string {
	return fmt.Sprintf("ring: size 2^%d pages out of range [0,%d]", e.SizeLog2, e.Max)
}

// Ring is a single-producer single-consumer byte ring. The producer owns
// `end`, the consumer owns `start`; both are free-running uint32 counters
// and all distances are modular, so capacity must stay a power of two no
// larger than 2^31.
// Anneau d'octets SPSC. Le producteur possède `end`, le consommateur
// possède `start` ; compteurs uint32 libres, arithmétique modulaire.
type Ring struct {
	capacity uint32
	mask     uint32
	start    uint32
	end      uint32

	base unsafe.Pointer
	data []byte // 2*capacity bytes, second half aliases the first
}

// New maps a ring of pagesize<<sizeLog2 bytes. The address space is
// reserved once at 2x the capacity, then the anonymous backing object is
// mapped into both halves. Any failure unwinds and returns the OS error.
func New(sizeLog2 uint) (*Ring, error) {
	pagesz := unix.Getpagesize()
	pageShift := uint(bits.TrailingZeros(uint(pagesz)))

	// counters are 32-bit so capacity may not exceed 2^31
	max := 31 - pageShift
	if sizeLog2 > max {
		return nil, &ErrSizeRange{SizeLog2: sizeLog2, Max: max}
	}

	capacity := uintptr(pagesz) << sizeLog2

	fd, err := anonBacking(capacity)
	if err != nil {
		return nil, fmt.Errorf("ring: backing object: %w", err)
	}
	defer unix.Close(fd) // mappings keep the object alive / les mappings gardent l'objet vivant

	// Reserve 2*capacity of contiguous address space, then overlay it.
	// Réserve 2*capacity d'espace d'adressage contigu, puis le recouvre.
	base, err := unix.MmapPtr(-1, 0, nil, 2*capacity,
		unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("ring: reserve %d bytes: %w", 2*capacity, err)
	}

	for i := uintptr(0); i < 2; i++ {
		at := unsafe.Add(base, i*capacity)
		if _, err := unix.MmapPtr(fd, 0, at, capacity,
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_SHARED|unix.MAP_FIXED); err != nil {
			_ = unix.MunmapPtr(base, 2*capacity)
			return nil, fmt.Errorf("ring: map alias %d: %w", i, err)
		}
	}

	r := &Ring{
		capacity: uint32(capacity),
		mask:     uint32(capacity) - 1,
		base:     base,
		data:     unsafe.Slice((*byte)(base), 2*capacity),
	}

	// The whole trick rests on the two views being the same pages; if the
	// kernel did not honor that we cannot run at all.
	r.data[capacity] = 0xa5
	if r.data[0] != 0xa5 {
		_ = unix.MunmapPtr(base, 2*capacity)
		return nil, fmt.Errorf("ring: aliased mapping does not alias")
	}
	r.data[capacity] = 0

	return r, nil
}

// Close tears down both mappings. Safe on a zero Ring and idempotent.
func (r *Ring) Close() error {
	if r == nil || r.base == nil {
		return nil
	}
	err := unix.MunmapPtr(r.base, uintptr(len(r.data)))
	r.base = nil
	r.data = nil
	return err
}

// Capacity in bytes.
func (r *Ring) Capacity() uint32 { return r.capacity }

// Count is the number of committed bytes waiting to be written out.
// Unsigned subtraction keeps this correct across counter wraparound.
func (r *Ring) Count() uint32 { return r.end - r.start }

// Free is the space available to read into.
func (r *Ring) Free() uint32 { return r.capacity - r.Count() }

func (r *Ring) Full() bool  { return r.Count() == r.capacity }
func (r *Ring) Empty() bool { return r.start == r.end }

// ReadBuffer returns the producer window: Free() contiguous bytes starting
// at the producer index. Contiguity across the wrap is what the second
// mapping buys; the highest reachable offset is 2*capacity-1.
// Fenêtre du producteur : Free() octets contigus à l'indice producteur.
func (r *Ring) ReadBuffer() []byte {
	off := r.end & r.mask
	return r.data[off : off+r.Free()]
}

// WriteBuffer returns the consumer window: Count() contiguous bytes
// starting at the consumer index, under the same guarantee.
// Fenêtre du consommateur, sous la même garantie.
func (r *Ring) WriteBuffer() []byte {
	off := r.start & r.mask
	return r.data[off : off+r.Count()]
}

// ReadAdvance commits n bytes produced into ReadBuffer. Negative n is the
// failed-I/O convention and advances nothing.
func (r *Ring) ReadAdvance(n int) {
	if n < 0 {
		return
	}
	if uint32(n) > r.Free() {
		panic("ring: read advance past free space")
	}
	r.end += uint32(n)
}

// WriteAdvance consumes n bytes out of WriteBuffer. Negative n advances
// nothing.
func (r *Ring) WriteAdvance(n int) {
	if n < 0 {
		return
	}
	if uint32(n) > r.Count() {
		panic("ring: write advance past committed bytes")
	}
	r.start += uint32(n)
}

// SizeLog2For returns the page count log2 whose capacity holds at least
// `bytes`, rounded up to a power of two, minimum one page. Oversized
// requests are caught later by New's range check.
func SizeLog2For(bytes uint) uint {
	pagesz := uint(unix.Getpagesize())
	npage := (bytes + pagesz - 1) / pagesz
	if npage <= 1 {
		return 0
	}
	return uint(bits.Len(npage - 1))
}
