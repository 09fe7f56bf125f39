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

// ngportal: tunnel netgraph traffic between vnet jails with ng_wormhole
package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	cfg "github.com/cezamee/ngtools/internal/config"
	"github.com/cezamee/ngtools/internal/diag"
	"github.com/cezamee/ngtools/internal/jail"
	"github.com/cezamee/ngtools/internal/portal"
)

var (
	noLoad   bool
	jailRef  string
	attached bool
)

var rootCmd = &cobra.Command{
	Use:   "ngportal [-n] [-j jail] spec [spec]",
	Short: "Build an ng_wormhole tunnel between vnet jails",
	Long: `ngportal creates ng_wormhole(4) nodes and opens them into vnet
jails. Each spec is [jail][:name][:node:hook]: the jail the side lives
in (default: here), the name to give the wormhole there and the
node:hook to connect its warp hook to. With two specs the wormholes
are collapsed into a single tunnel between the two jails.`,
	Args:          usageArgs(cobra.RangeArgs(1, 2)),
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: run,
}

var (
	wsJID      int
	wsNode     string
	wsName     string
	wsPeerNode string
	wsPeerHook string
)

// warpsideCmd is not for users: ngportal re-execs itself with this verb
// to do the far-side work from inside the target jail.
var warpsideCmd = &cobra.Command{
	Use:           "warpside",
	Hidden:        true,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := strconv.ParseUint(wsNode, 16, 32)
		if err != nil {
			return diag.Errorf(diag.ExUsage, "bad node id `%s'", wsNode)
		}
		return portal.Warpside(wsJID, uint32(node), wsName, wsPeerNode, wsPeerHook)
	},
}

// usageArgs turns cobra's positional-argument complaints into usage
// errors, exit code included.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			cmd.Usage()
			return diag.WithCode(diag.ExUsage, err)
		}
		return nil
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.Usage()
		return diag.WithCode(diag.ExUsage, err)
	})
	rootCmd.Flags().BoolVarP(&noLoad, "no-modules", "n", false,
		"do not try to load missing kernel modules")
	rootCmd.Flags().StringVarP(&jailRef, "jail", "j", "",
		"enter this jail (name or jid) before touching the graph")

	warpsideCmd.Flags().IntVar(&wsJID, "jid", 0, "jail to attach to")
	warpsideCmd.Flags().StringVar(&wsNode, "node", "", "wormhole node id, hex")
	warpsideCmd.Flags().StringVar(&wsName, "name", "", "name to give the wormhole")
	warpsideCmd.Flags().StringVar(&wsPeerNode, "peer-node", "", "node to connect warp to")
	warpsideCmd.Flags().StringVar(&wsPeerHook, "peer-hook", "", "hook to connect warp to")
	rootCmd.AddCommand(warpsideCmd)
}

func run(cmd *cobra.Command, args []string) error {
	if len(jailRef) > cfg.MaxHostNameLen {
		cmd.Usage()
		return diag.Errorf(diag.ExUsage, "jail reference `%s' too long", jailRef)
	}
	if jailRef != "" {
		jid, err := jail.ID(jailRef)
		if err != nil {
			return diag.WithCode(diag.ExNoHost, err)
		}
		if err := jail.Attach(jid); err != nil {
			return diag.WithCode(diag.ExOSErr, err)
		}
		attached = true
	}

	specs := make([]portal.Spec, 0, len(args))
	bad := false
	for _, arg := range args {
		s, issues := portal.ParseSpec(arg)
		for _, msg := range issues {
			diag.Warnf("%s", msg)
		}
		if len(issues) > 0 {
			bad = true
			continue
		}
		specs = append(specs, s)
	}
	if bad {
		cmd.Usage()
		return diag.Errorf(diag.ExUsage, "invalid wormhole specification")
	}

	return portal.Build(portal.Options{
		LoadModules: !noLoad,
		Attached:    attached,
		Specs:       specs,
	})
}

func main() {
	diag.SetName("ngportal")
	if err := rootCmd.Execute(); err != nil {
		diag.Errf("%v", err)
		os.Exit(diag.ExitCode(err))
	}
}
