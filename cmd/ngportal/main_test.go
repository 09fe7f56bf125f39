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

package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	cfg "github.com/cezamee/ngtools/internal/config"
	"github.com/cezamee/ngtools/internal/diag"
)

// exec resets the flag state and runs the command line; none of the
// argument mistakes below may reach the kernel.
func exec(args ...string) error {
	noLoad = false
	jailRef = ""
	attached = false
	wsJID, wsNode, wsName, wsPeerNode, wsPeerHook = 0, "", "", "", ""
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// Every way of mangling the command line exits EX_USAGE, flag parse
// failures included, never the OS-error code.
func TestBadArgumentsExitUsage(t *testing.T) {
	for name, args := range map[string][]string{
		"unknown option":       {"-x", "guest"},
		"no specs":             {},
		"three specs":          {"a", "b", "c"},
		"jail name too long":   {"-j", strings.Repeat("x", cfg.MaxHostNameLen+1), "guest"},
		"malformed spec":       {"a:b:c:d:extra"},
		"warpside bad node id": {"warpside", "--jid", "1", "--node", "zzz"},
	} {
		t.Run(name, func(t *testing.T) {
			err := exec(args...)
			assert.Equal(t, diag.ExUsage, diag.ExitCode(err), "err: %v", err)
		})
	}
}
