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

// Portal orchestration: wormholes between vnets, far sides configured by
// a re-exec'd child attached to the target jail
// Orchestration du portail : wormholes entre vnets, côtés distants
// configurés par un enfant ré-exécuté attaché à la jail cible
package portal

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	cfg "github.com/cezamee/ngtools/internal/config"
	"github.com/cezamee/ngtools/internal/diag"
	"github.com/cezamee/ngtools/internal/jail"
	"github.com/cezamee/ngtools/internal/kld"
	"github.com/cezamee/ngtools/internal/netgraph"
)

// Options is everything the CLI decides.
type Options struct {
	LoadModules bool
	Attached    bool // the process already jail_attach'ed; kldload is off the table
	Specs       []Spec
}

// side is one parsed spec bound to its resolved jid.
type side struct {
	spec Spec
	jid  int
}

// builder tracks the wormholes created so far so a failure anywhere can
// unwind them. Opened wormholes are persistent; they will not clean up
// after themselves.
type builder struct {
	ctx     *netgraph.Context
	created []uint32
}

func currentJID() (int, error) {
	jid, err := unix.SysctlUint32("security.jail.jid")
	if err != nil {
		return 0, errors.Wrap(err, "can't get 'security.jail.jid' value")
	}
	return int(jid), nil
}

// Build sets the whole portal up and tears its own work down on any
// failure. On success the wormholes stay behind in the kernel; that is
// the product.
func Build(opts Options) error {
	if opts.LoadModules && !opts.Attached {
		for _, m := range []string{"ng_socket", "ng_wormhole"} {
			if err := kld.EnsureLoaded(m); err != nil {
				return diag.WithCode(diag.ExOSErr, err)
			}
		}
	}

	here, err := currentJID()
	if err != nil {
		return diag.WithCode(diag.ExOSErr, err)
	}

	sides := make([]side, 0, len(opts.Specs))
	for _, s := range opts.Specs {
		jid := here
		if s.Jail != "" {
			if jid, err = jail.ID(s.Jail); err != nil {
				return diag.WithCode(diag.ExNoHost, err)
			}
		}
		sides = append(sides, side{spec: s, jid: jid})
	}
	if len(sides) == 2 && sides[0].jid == sides[1].jid {
		return diag.Errorf(diag.ExUsage, "duplicate jail reference detected")
	}
	// the remote side, when there is a local one, goes first
	if len(sides) == 2 && sides[0].jid == here {
		sides[0], sides[1] = sides[1], sides[0]
	}
	if sides[0].jid == here {
		// a portal from this vnet to itself
		return diag.Errorf(diag.ExUsage, "duplicate jail reference detected")
	}

	b := &builder{}
	b.ctx, err = netgraph.NewContext(false)
	if err != nil {
		return diag.WithCode(diag.ExOSErr, err)
	}
	defer b.ctx.Close()

	if err := b.build(sides, here); err != nil {
		b.unwind()
		return err
	}
	return nil
}

func (b *builder) build(sides []side, here int) error {
	// one wormhole per remote side; its far end lands in that side's vnet
	var near []uint32
	for _, sd := range sides {
		if sd.jid == here {
			continue
		}
		id, err := b.openInto(sd)
		if err != nil {
			return err
		}
		near = append(near, id)
	}

	if len(near) == 2 {
		// collapse: warp to warp, the near ends annihilate and the far
		// ends splice across the two vnets
		return collapseErr(b.ctx.ConnectWormhole(near[0],
			fmt.Sprintf("[%08x]", near[1]), cfg.WormholeHook))
	}

	// one remote side: the near end lives here and the local spec, if any,
	// names and connects it
	local := sides[len(sides)-1]
	if local.jid != here {
		return nil // single remote spec, near end left for the operator
	}
	if local.spec.Name != "" {
		if err := b.ctx.NameNode(near[0], local.spec.Name); err != nil {
			return diag.WithCode(diag.ExDataErr, err)
		}
	}
	if local.spec.Node != "" {
		if err := b.ctx.ConnectWormhole(near[0],
			local.spec.Node, local.spec.Hook); err != nil {
			return diag.WithCode(diag.ExDataErr, err)
		}
	}
	return nil
}

// collapseErr classifies a refused warp-to-warp collapse. Whatever the
// kernel's reason, the graph rejected its input: a data error, except
// that a permission refusal keeps its own code.
func collapseErr(err error) error {
	if err == nil {
		return nil
	}
	return diag.WithCode(diag.ExDataErr, err)
}

// openInto creates a wormhole, opens its far side into the spec's jail
// and hands the far end to a warpside child for naming and connecting.
func (b *builder) openInto(sd side) (uint32, error) {
	id, err := b.ctx.CreateWormhole()
	if err != nil {
		return 0, diag.WithCode(diag.ExOSErr, err)
	}
	b.created = append(b.created, id)

	far, err := b.ctx.OpenWormhole(id, sd.spec.Jail)
	if err != nil {
		return 0, diag.WithCode(diag.ExDataErr, err)
	}

	// nothing asked of the far side, no child to run
	if sd.spec.Name == "" && sd.spec.Node == "" {
		return id, nil
	}
	if err := spawnWarpside(sd.jid, far, sd.spec); err != nil {
		return 0, err
	}
	return id, nil
}

// spawnWarpside re-execs ourselves into the jail. Go cannot fork and
// keep running, so the child is the same binary with a hidden verb.
func spawnWarpside(jid int, far uint32, s Spec) error {
	exe, err := os.Executable()
	if err != nil {
		return diag.WithCode(diag.ExOSErr, errors.Wrap(err, "can't find own executable"))
	}
	cmd := exec.Command(exe, "warpside",
		"--jid", strconv.Itoa(jid),
		"--node", fmt.Sprintf("%08x", far),
		"--name", s.Name,
		"--peer-node", s.Node,
		"--peer-hook", s.Hook)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return diag.Errorf(diag.ExOSErr,
			"child failed its mission in jail `%s'", s.Jail)
	}
	return nil
}

// unwind shuts the created wormholes down in definition order. Failures
// only warn; a collapse may already have consumed a node.
func (b *builder) unwind() {
	for _, id := range b.created {
		if err := b.ctx.Shutdown(id); err != nil {
			diag.Warnf("failed to shutdown node, try: ngctl shutdown %s",
				netgraph.IDPath(id))
		}
	}
	b.created = nil
}

// Warpside is the child's whole job: step into the jail, then name and
// connect the far end of the wormhole it was handed.
func Warpside(jid int, node uint32, name, peerNode, peerHook string) error {
	if err := jail.Attach(jid); err != nil {
		return diag.WithCode(diag.ExOSErr, err)
	}
	ctx, err := netgraph.NewContext(false)
	if err != nil {
		return diag.WithCode(diag.ExOSErr, err)
	}
	defer ctx.Close()

	if name != "" {
		if err := ctx.NameNode(node, name); err != nil {
			return diag.WithCode(diag.ExDataErr, err)
		}
	}
	if peerNode != "" {
		if err := ctx.ConnectWormhole(node, peerNode, peerHook); err != nil {
			return diag.WithCode(diag.ExDataErr, err)
		}
	}
	return nil
}
