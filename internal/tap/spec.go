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

// Capture specification parsing: layer:node:hook
// Analyse des spécifications de capture : layer:node:hook
package tap

import (
	"fmt"
	"strings"

	cfg "github.com/cezamee/ngtools/internal/config"
)

// Spec is one capture source: which link layer the frames on it carry,
// and the node:hook to tee.
type Spec struct {
	Layer string
	Node  string
	Hook  string
}

var layers = map[string]bool{
	cfg.PktEther: true,
	cfg.PktInet4: true,
	cfg.PktInet6: true,
}

// checkComponent bounds one colon-separated piece; empty means unset.
func checkComponent(what, val string, max int, issues *[]string) string {
	if len(val) > max {
		*issues = append(*issues, fmt.Sprintf("`%s': name too long: `%s'", what, val))
		return ""
	}
	return val
}

// ParseSpec splits `layer:node:hook` and reports every problem it finds
// rather than the first, so users are not made to fetch one rock at a
// time. An empty issue list means the Spec is usable.
func ParseSpec(arg string) (Spec, []string) {
	var s Spec
	var issues []string

	parts := strings.SplitN(arg, ":", 4)
	if len(parts) > 3 {
		issues = append(issues,
			fmt.Sprintf("unrecognized components in pcap specification: `%s'", parts[3]))
	}
	for len(parts) < 3 {
		parts = append(parts, "")
	}

	layer := checkComponent("layer", parts[0], cfg.PcapPktTypeLen-1, &issues)
	s.Node = checkComponent("node", parts[1], cfg.NodeLen, &issues)
	s.Hook = checkComponent("hook", parts[2], cfg.HookLen, &issues)

	switch {
	case layer == "":
		issues = append(issues, fmt.Sprintf("spec `%s': layer is missing", arg))
	case !layers[layer]:
		issues = append(issues, fmt.Sprintf("layer `%s' is not one of `%s', `%s', or `%s'",
			layer, cfg.PktEther, cfg.PktInet4, cfg.PktInet6))
	default:
		s.Layer = layer
	}
	if s.Node == "" {
		issues = append(issues, fmt.Sprintf("spec `%s': node is missing", arg))
	}
	if s.Hook == "" {
		issues = append(issues, fmt.Sprintf("spec `%s': hook is missing", arg))
	}
	return s, issues
}
