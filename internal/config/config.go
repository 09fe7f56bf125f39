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

// netgraph(4) wire protocol and node configuration constants
// Constantes du protocole netgraph(4) et de configuration des nœuds
package cfg

const (
	// Netgraph socket protocol numbers (ng_socket(4))
	// Numéros de protocole des sockets netgraph (ng_socket(4))
	NgControl = 2 // control socket / socket de contrôle
	NgData    = 1 // data socket / socket de données

	// Name size limits from ng_message.h, sizes include the NUL
	// Limites de taille des noms (ng_message.h), NUL inclus
	NodeSiz   = 32
	HookSiz   = 32
	TypeSiz   = 32
	CmdStrSiz = 32

	NodeLen = NodeSiz - 1
	HookLen = HookSiz - 1

	// The kernel only resolves one `node:hook` level, so the huge
	// NG_PATHSIZ is pointless. One node, one hook, a ':' and a NUL.
	PathSize = NodeSiz + HookSiz
	PathLen  = PathSize - 1

	// ng_mesg header layout: version/spare/spare2, then arglen, cmd,
	// flags, token, typecookie, then the 32 byte command string.
	// En-tête ng_mesg : version/spare/spare2, puis arglen, cmd,
	// flags, token, typecookie, puis la chaîne de commande (32 octets).
	MsgVersion    = 8
	MsgHeaderSize = 4 + 5*4 + CmdStrSiz

	// Generic control messages (NGM_GENERIC_COOKIE namespace)
	// Messages de contrôle génériques (espace NGM_GENERIC_COOKIE)
	GenericCookie = 1137070366
	CmdShutdown   = 1
	CmdMkPeer     = 2
	CmdConnect    = 3
	CmdName       = 4
	CmdRmHook     = 5
	CmdNodeInfo   = 6
	CmdListHooks  = 7

	// ng_pcap(4) node
	// Nœud ng_pcap(4)
	PcapNodeType      = "pcap"
	PcapHookSnoop     = "snoop"
	PcapHookSource    = "src" // hooks are src0, src1, ... / les hooks sont src0, src1, ...
	PcapCookie        = 1586283231
	PcapSetConfig     = 1
	PcapGetConfig     = 2
	PcapSetSourceType = 3
	PcapPktTypeLen    = 16
	PcapMaxLinks      = 32

	// Snaplen bounds advertised by ng_pcap(4); the default is the max,
	// same as tcpdump.
	PcapMinSnaplen = 68
	PcapMaxSnaplen = 65535

	// Packet layer tags accepted on src hooks
	// Étiquettes de couche paquet acceptées sur les hooks src
	PktEther = "ether"
	PktInet4 = "inet4"
	PktInet6 = "inet6"

	// ng_wormhole(4) node
	// Nœud ng_wormhole(4)
	WormholeNodeType = "wormhole"
	WormholeHook     = "warp"
	WormholeCookie   = 1739380822
	WormholeOpen     = 1

	// MAXHOSTNAMELEN, jail references cannot exceed it
	// MAXHOSTNAMELEN, les références de jail ne peuvent pas le dépasser
	MaxHostNameLen = 256
)

// IDFmt renders a node ID as an absolute netgraph path, e.g. `[0000002f]:`
const IDFmt = "[%08x]:"
