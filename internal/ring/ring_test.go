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

package ring

import (
	"bytes"
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"
)

func TestNewRejectsOutOfRangeSize(t *testing.T) {
	max := uint(31 - bits.TrailingZeros(uint(unix.Getpagesize())))

	_, err := New(max + 1)
	require.Error(t, err)
	var rng *ErrSizeRange
	require.ErrorAs(t, err, &rng)
	assert.Equal(t, max+1, rng.SizeLog2)
	assert.Equal(t, max, rng.Max)
}

func TestCloseZeroRingIsSafe(t *testing.T) {
	var r Ring
	require.NoError(t, r.Close())
	require.NoError(t, r.Close()) // idempotent
}

// Writing through one view must be observable through the other, in both
// directions. Homage to Beagle Bros.
func TestAliasedViews(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)
	defer r.Close()

	c := r.capacity
	for _, i := range []uint32{0, 1, c / 2, c - 1} {
		r.data[i] = 0x5a
		assert.Equalf(t, byte(0x5a), r.data[i+c], "data[%d] not visible in copy", i)
		r.data[i+c] = 0xa5
		assert.Equalf(t, byte(0xa5), r.data[i], "copy[%d] not visible in data", i)
	}
}

func TestEmptyFullTransitions(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.Empty())
	assert.False(t, r.Full())
	assert.Equal(t, r.capacity, r.Free())

	r.ReadAdvance(int(r.capacity))
	assert.True(t, r.Full())
	assert.False(t, r.Empty())
	assert.Zero(t, r.Free())
	assert.Empty(t, r.ReadBuffer())

	r.WriteAdvance(int(r.capacity))
	assert.True(t, r.Empty())
	assert.Empty(t, r.WriteBuffer())
}

func TestFailedIOAdvancesNothing(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)
	defer r.Close()

	r.ReadAdvance(-1)
	assert.True(t, r.Empty())
	r.ReadAdvance(10)
	r.WriteAdvance(-1)
	assert.Equal(t, uint32(10), r.Count())
}

// Random chunk sizes in, random chunk sizes out, bytes must come back in
// order. Covers the contiguous-window guarantee at every interleaving the
// generator happens to visit.
func TestRoundTripRandomChunks(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)
	defer r.Close()

	rng := rand.New(rand.NewSource(0x9e3779b9))
	src := make([]byte, 1<<20)
	rng.Read(src)

	var got bytes.Buffer
	in := src
	for got.Len() < len(src) {
		if n := int(r.Free()); n > 0 && len(in) > 0 {
			n = min(n, rng.Intn(n)+1)
			n = min(n, len(in))
			copied := copy(r.ReadBuffer()[:n], in[:n])
			r.ReadAdvance(copied)
			in = in[copied:]
		}
		if n := int(r.Count()); n > 0 {
			n = min(n, rng.Intn(n)+1)
			got.Write(r.WriteBuffer()[:n])
			r.WriteAdvance(n)
		}
		require.LessOrEqual(t, r.Count(), r.capacity)
	}
	require.True(t, bytes.Equal(src, got.Bytes()), "byte stream reordered or corrupted")
}

// Windows are contiguous regardless of where the indices sit; the slice
// lengths must always equal Free()/Count() exactly.
func TestContiguousWindows(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)
	defer r.Close()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		if f := int(r.Free()); f > 0 {
			r.ReadAdvance(rng.Intn(f + 1))
		}
		assert.Len(t, r.ReadBuffer(), int(r.Free()))
		if c := int(r.Count()); c > 0 {
			r.WriteAdvance(rng.Intn(c + 1))
		}
		assert.Len(t, r.WriteBuffer(), int(r.Count()))
	}
}

// Seed both counters just below 2^32 and push data through: every modular
// comparison has to hold while end, then start, wrap to zero. Equivalent
// coverage to streaming 10*2^32 bytes without the wall clock bill.
func TestCounterWraparound(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)
	defer r.Close()

	r.start = 0xffffffff - 3*r.capacity/2
	r.end = r.start

	rng := rand.New(rand.NewSource(7))
	var moved uint64
	for moved < uint64(8*r.capacity) { // both counters wrap well past zero
		if f := int(r.Free()); f > 0 {
			n := rng.Intn(f) + 1
			r.ReadAdvance(n)
		}
		require.LessOrEqual(t, r.Count(), r.capacity)
		if c := int(r.Count()); c > 0 {
			n := rng.Intn(c) + 1
			r.WriteAdvance(n)
			moved += uint64(n)
		}
		require.LessOrEqual(t, r.Count(), r.capacity)
		assert.Len(t, r.ReadBuffer(), int(r.Free()))
		assert.Len(t, r.WriteBuffer(), int(r.Count()))
	}
	require.Less(t, r.end, uint32(0x80000000), "end should have wrapped")
}

func TestSizeLog2For(t *testing.T) {
	pagesz := uint(unix.Getpagesize())

	cases := []struct {
		bytes uint
		want  uint
	}{
		{0, 0},
		{1, 0},
		{pagesz, 0},
		{pagesz + 1, 1},
		{2 * pagesz, 1},
		{3 * pagesz, 2},
		{4 * pagesz, 2},
		// tap sizing input: three max-size frames
		{3 * 65535, uint(bits.Len((3*65535+pagesz-1)/pagesz - 1))},
	}
	for _, tc := range cases {
		got := SizeLog2For(tc.bytes)
		assert.Equalf(t, tc.want, got, "SizeLog2For(%d)", tc.bytes)
		if tc.bytes > 0 {
			assert.GreaterOrEqual(t, pagesz<<got, tc.bytes)
		}
	}
}
