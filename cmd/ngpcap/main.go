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

// ngpcap: tee netgraph hooks into a pcap stream on stdout
package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	cfg "github.com/cezamee/ngtools/internal/config"
	"github.com/cezamee/ngtools/internal/diag"
	"github.com/cezamee/ngtools/internal/tap"
)

var (
	noLoad  bool
	jailRef string
	snaplen int32
)

var rootCmd = &cobra.Command{
	Use:   "ngpcap [-n] [-j jail] [-s snaplen] layer:node:hook [layer:node:hook ...]",
	Short: "Capture netgraph traffic as a pcap stream on stdout",
	Long: `ngpcap attaches an ng_pcap(4) node to up to 32 netgraph hooks and
writes the captured frames to stdout as a pcap stream, ready for
tcpdump -r or wireshark. Each spec is layer:node:hook where layer is
one of ether, inet4 or inet6.`,
	Args:          usageArgs(cobra.RangeArgs(1, cfg.PcapMaxLinks)),
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: run,
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
	rootCmd.Flags().Int32VarP(&snaplen, "snaplen", "s", cfg.PcapMaxSnaplen,
		"bytes of each frame to keep")
}

func run(cmd *cobra.Command, args []string) error {
	if snaplen < cfg.PcapMinSnaplen {
		cmd.Usage()
		return diag.Errorf(diag.ExUsage, "snaplen %d < min %d",
			snaplen, cfg.PcapMinSnaplen)
	}
	if snaplen > cfg.PcapMaxSnaplen {
		cmd.Usage()
		return diag.Errorf(diag.ExUsage, "snaplen %d > max %d",
			snaplen, cfg.PcapMaxSnaplen)
	}
	if len(jailRef) > cfg.MaxHostNameLen {
		cmd.Usage()
		return diag.Errorf(diag.ExUsage, "jail reference `%s' too long", jailRef)
	}

	// parse every spec before rejecting, so one run reports every problem
	specs := make([]tap.Spec, 0, len(args))
	bad := false
	for _, arg := range args {
		s, issues := tap.ParseSpec(arg)
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
		return diag.Errorf(diag.ExUsage, "invalid capture specification")
	}

	t, err := tap.New(tap.Options{
		LoadModules: !noLoad,
		Jail:        jailRef,
		Snaplen:     snaplen,
		Specs:       specs,
	})
	if err != nil {
		return err
	}
	defer t.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINFO, unix.SIGUSR1, os.Interrupt, unix.SIGTERM)
	go func() {
		for sig := range sigs {
			switch sig {
			case unix.SIGINFO, unix.SIGUSR1:
				in, out, buffered := t.Stats()
				diag.Infof("%d bytes captured, %d written, %d buffered",
					in, out, buffered)
			default:
				// only park the loop; the deferred Close tears the
				// handles down in order once Run has returned
				t.Stop()
			}
		}
	}()

	return t.Run()
}

func main() {
	diag.SetName("ngpcap")
	if err := rootCmd.Execute(); err != nil {
		diag.Errf("%v", err)
		os.Exit(diag.ExitCode(err))
	}
}
