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

// sysexits(3) error taxonomy and warn(3)/err(3) style stderr output,
// colored only when stderr is a terminal. Never touches stdout: ngpcap's
// stdout is a pcap stream.
// Taxonomie d'erreurs sysexits(3) et sortie stderr façon warn(3)/err(3).
package diag

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Exit codes, the sysexits(3) subset both tools use.
const (
	ExUsage   = 64 // bad arguments / mauvais arguments
	ExDataErr = 65 // graph RPC rejected the input
	ExNoHost  = 68 // jail reference did not resolve
	ExOSErr   = 71 // syscall or resource failure
	ExNoPerm  = 77 // kernel said EPERM
)

var (
	name = "ngtools"

	isTTY     = term.IsTerminal(int(os.Stderr.Fd()))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// SetName sets the utility prefix on every diagnostic line.
func SetName(n string) { name = n }

// Error pairs a failure with its exit code.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// CodeFor maps an error to `alt`, except that a kernel permission
// refusal anywhere in the chain always becomes ExNoPerm.
func CodeFor(alt int, err error) int {
	var errno unix.Errno
	if stderrors.As(err, &errno) && errno == unix.EPERM {
		return ExNoPerm
	}
	return alt
}

// WithCode wraps err with an exit code, applying the EPERM rule.
func WithCode(alt int, err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if stderrors.As(err, &de) {
		return de // already classified, keep the inner code
	}
	return &Error{Code: CodeFor(alt, err), Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// ExitCode extracts the sysexits code, defaulting unclassified errors to
// ExOSErr.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var de *Error
	if stderrors.As(err, &de) {
		return de.Code
	}
	return CodeFor(ExOSErr, err)
}

func emit(style lipgloss.Style, msg string) {
	line := fmt.Sprintf("%s: %s", name, msg)
	if isTTY {
		line = style.Render(line)
	}
	fmt.Fprintln(os.Stderr, line)
}

// Warnf reports a non-fatal problem, warnx(3) style.
func Warnf(format string, args ...any) {
	emit(warnStyle, fmt.Sprintf(format, args...))
}

// Errf reports a fatal problem; the caller decides when to exit.
func Errf(format string, args ...any) {
	emit(errStyle, fmt.Sprintf(format, args...))
}

// Infof reports progress or stats, for SIGINFO output.
func Infof(format string, args ...any) {
	emit(infoStyle, fmt.Sprintf(format, args...))
}
