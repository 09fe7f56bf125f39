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

package portal

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/cezamee/ngtools/internal/diag"
	"github.com/cezamee/ngtools/internal/netgraph"
)

// Every collapse refusal is the graph rejecting its input: the two
// classified cases and the generic errno alike carry the data-error
// code. Only a kernel permission refusal overrides it.
func TestCollapseErrClassification(t *testing.T) {
	assert.NoError(t, collapseErr(nil))

	for _, err := range []error{
		errors.Wrap(netgraph.ErrNotOpened, "unable to connect to `[0000002a]:warp'"),
		netgraph.ErrWouldLoop,
		errors.Wrap(unix.ENOENT, "unable to connect `[00000011]:warp' to `[0000002a]:warp'"),
		errors.New("unable to connect"),
	} {
		assert.Equal(t, diag.ExDataErr, diag.ExitCode(collapseErr(err)), "err: %v", err)
	}

	assert.Equal(t, diag.ExNoPerm,
		diag.ExitCode(collapseErr(errors.Wrap(unix.EPERM, "unable to connect"))))
}
