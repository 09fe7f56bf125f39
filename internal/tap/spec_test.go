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

package tap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecValid(t *testing.T) {
	for _, tc := range []struct {
		arg  string
		want Spec
	}{
		{"ether:em0:lower", Spec{Layer: "ether", Node: "em0", Hook: "lower"}},
		{"inet4:igb1:inet", Spec{Layer: "inet4", Node: "igb1", Hook: "inet"}},
		{"inet6:tun0:inet6", Spec{Layer: "inet6", Node: "tun0", Hook: "inet6"}},
	} {
		s, issues := ParseSpec(tc.arg)
		require.Empty(t, issues, "spec %q", tc.arg)
		assert.Equal(t, tc.want, s)
	}
}

func TestParseSpecIssues(t *testing.T) {
	for _, tc := range []struct {
		name string
		arg  string
		want []string // substrings, one per expected issue
	}{
		{"empty", "", []string{"layer is missing", "node is missing", "hook is missing"}},
		{"bad layer", "bogus:em0:lower", []string{"layer `bogus'"}},
		{"missing hook", "ether:em0", []string{"hook is missing"}},
		{"missing node", "ether::lower", []string{"node is missing"}},
		{"extra component", "ether:em0:lower:junk", []string{"unrecognized components"}},
		{"long node", "ether:" + strings.Repeat("x", 33) + ":lower", []string{"name too long", "node is missing"}},
		{"long hook", "ether:em0:" + strings.Repeat("h", 33), []string{"name too long", "hook is missing"}},
		{"long layer", strings.Repeat("l", 16) + ":em0:lower", []string{"name too long", "layer is missing"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, issues := ParseSpec(tc.arg)
			require.Len(t, issues, len(tc.want), "issues: %v", issues)
			for i, frag := range tc.want {
				assert.Contains(t, issues[i], frag)
			}
		})
	}
}

func TestParseSpecCollectsEverything(t *testing.T) {
	// one pass must surface every defect, not just the first
	_, issues := ParseSpec("bogus::")
	assert.Len(t, issues, 3)
}
