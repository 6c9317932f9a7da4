package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/derp/rpc"
	"github.com/pithecene-io/derp/wire"
)

// KillCommand signals a running job (spec.md §6 "exec.kill", §8 scenario
// 4/5).
func KillCommand() *cli.Command {
	return &cli.Command{
		Name:  "kill",
		Usage: "signal a running job",
		Flags: append(ReadOnlyFlags(),
			&cli.Uint64Flag{Name: "id", Usage: "job id", Required: true},
			&cli.StringFlag{Name: "ranks", Usage: "rank-set expression, e.g. 0-3,5", Required: true},
			&cli.IntFlag{Name: "signal", Usage: "signal number", Value: wire.SIGTERM},
		),
		Action: killAction,
	}
}

func killAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for kill", 1)
	}

	req := rpc.Request{Kind: "exec.kill", Data: map[string]any{
		"id":     c.Uint64("id"),
		"ranks":  c.String("ranks"),
		"signal": c.Int("signal"),
	}}

	resps, err := call(c, req)
	if err != nil {
		return err
	}
	for _, resp := range resps {
		if resp.Error != "" {
			return cli.Exit(fmt.Sprintf("error: %s", resp.Error), 1)
		}
	}
	fmt.Println("ok")
	return nil
}
