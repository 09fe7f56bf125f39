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

package portal

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
		{"guest", Spec{Jail: "guest"}},
		{"guest:wh0", Spec{Jail: "guest", Name: "wh0"}},
		{"guest:wh0:eiface0:ether", Spec{Jail: "guest", Name: "wh0", Node: "eiface0", Hook: "ether"}},
		{"guest::bridge0:link3", Spec{Jail: "guest", Node: "bridge0", Hook: "link3"}},
		{":wh1:em0:upper", Spec{Name: "wh1", Node: "em0", Hook: "upper"}},
		{"", Spec{}},
		// trailing empty components are noise, not an error
		{"a::::", Spec{Jail: "a"}},
		{"7:wh2", Spec{Jail: "7", Name: "wh2"}},
	} {
		s, issues := ParseSpec(tc.arg)
		require.Empty(t, issues, "spec %q: %v", tc.arg, issues)
		assert.Equal(t, tc.want, s, "spec %q", tc.arg)
	}
}

func TestParseSpecIssues(t *testing.T) {
	for _, tc := range []struct {
		name string
		arg  string
		want []string
	}{
		{"extra component", "a:b:c:d:e", []string{"unrecognized components"}},
		{"node without hook", "guest:wh0:eiface0", []string{"missing hook"}},
		{"hook without node", "guest:wh0::ether", []string{"missing node"}},
		{"long jail", strings.Repeat("j", 257), []string{"name too long"}},
		{"long name", "guest:" + strings.Repeat("n", 33), []string{"name too long"}},
		{"long hook", "guest:wh0:em0:" + strings.Repeat("h", 33), []string{"name too long", "missing hook"}},
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
