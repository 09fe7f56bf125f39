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

// Wormhole specification parsing: [jail][:name][:node:hook]
// Analyse des spécifications wormhole : [jail][:name][:node:hook]
package portal

import (
	"fmt"
	"strings"

	cfg "github.com/cezamee/ngtools/internal/config"
)

// Spec is one side of the portal. Every component is optional, except
// that node and hook only make sense together.
type Spec struct {
	Jail string
	Name string
	Node string
	Hook string
}

func checkComponent(what, val string, max int, issues *[]string) string {
	if len(val) > max {
		*issues = append(*issues, fmt.Sprintf("`%s': name too long: `%s'", what, val))
		return ""
	}
	return val
}

// ParseSpec splits `[jail][:name][:node:hook]`, collecting every problem
// before giving up. Empty components stay unset; a lone trailing colon
// run is tolerated (`a::::` is just jail `a`).
func ParseSpec(arg string) (Spec, []string) {
	var s Spec
	var issues []string

	parts := strings.SplitN(arg, ":", 5)
	if len(parts) > 4 && parts[4] != "" {
		issues = append(issues,
			fmt.Sprintf("unrecognized components after wormhole spec: `%s'", parts[4]))
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}

	s.Jail = checkComponent("jail", parts[0], cfg.MaxHostNameLen, &issues)
	s.Name = checkComponent("name", parts[1], cfg.NodeLen, &issues)
	s.Node = checkComponent("node", parts[2], cfg.NodeLen, &issues)
	s.Hook = checkComponent("hook", parts[3], cfg.HookLen, &issues)

	// node and hook travel in pairs
	if s.Node != "" && s.Hook == "" {
		issues = append(issues, fmt.Sprintf("node: `%s': set but missing hook", s.Node))
	}
	if s.Node == "" && s.Hook != "" {
		issues = append(issues, fmt.Sprintf("hook: `%s': set but missing node", s.Hook))
	}
	return s, issues
}
