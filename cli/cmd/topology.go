package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/derp/cli/render"
	"github.com/pithecene-io/derp/cli/tui"
	"github.com/pithecene-io/derp/rpc"
)

// TopologyCommand prints the rank tree the root rank loaded at startup
// (spec.md §3 "Topology").
func TopologyCommand() *cli.Command {
	return &cli.Command{
		Name:   "topology",
		Usage:  "show the rank tree",
		Flags:  TUIReadOnlyFlags(),
		Action: topologyAction,
	}
}

func topologyAction(c *cli.Context) error {
	resps, err := call(c, rpc.Request{Kind: "topology"})
	if err != nil {
		return err
	}
	if len(resps) == 0 {
		return cli.Exit("no response from root", 1)
	}

	resp := resps[0]
	if resp.Error != "" {
		return cli.Exit(fmt.Sprintf("error: %s", resp.Error), 1)
	}

	self, _ := resp.Data["self"].(uint32)
	tree, _ := resp.Data["tree"].(map[string]any)
	root := decodeNode(tree)

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("topology", tui.TopologyView{Self: self, Root: root})
	}
	return r.Render(map[string]any{"self": self, "tree": tree})
}

// decodeNode converts the map-shaped tree cmd/derpd/control.go serializes
// back into tui.TopologyNode for TUI rendering.
func decodeNode(m map[string]any) tui.TopologyNode {
	rank, _ := m["rank"].(uint32)
	childrenRaw, _ := m["children"].([]any)
	children := make([]tui.TopologyNode, 0, len(childrenRaw))
	for _, c := range childrenRaw {
		if cm, ok := c.(map[string]any); ok {
			children = append(children, decodeNode(cm))
		}
	}
	return tui.TopologyNode{Rank: rank, Children: children}
}
