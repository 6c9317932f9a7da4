package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/derp/cli/render"
	"github.com/pithecene-io/derp/cli/tui"
	"github.com/pithecene-io/derp/rpc"
)

// PingResult is the rendered response for the ping command.
type PingResult struct {
	Ranks string `json:"ranks"`
}

// PingCommand waits for every addressed rank to acknowledge (spec.md §6
// "ping", §4.1 "per-child restriction").
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "wait for the given ranks to acknowledge",
		Flags: append(TUIReadOnlyFlags(),
			&cli.StringFlag{Name: "ranks", Usage: "rank-set expression, e.g. 0-3,5", Required: true},
		),
		Action: pingAction,
	}
}

func pingAction(c *cli.Context) error {
	req := rpc.Request{Kind: "ping", Data: map[string]any{"ranks": c.String("ranks")}}
	resps, err := call(c, req)
	if err != nil {
		return err
	}
	if len(resps) == 0 {
		return cli.Exit("no response from root", 1)
	}
	last := resps[len(resps)-1]
	if last.Error != "" {
		return cli.Exit(fmt.Sprintf("error: %s", last.Error), 1)
	}

	ranks, _ := last.Data["ranks"].(string)
	result := PingResult{Ranks: ranks}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("ping", tui.PingView{Ranks: ranks})
	}
	return r.Render(result)
}
