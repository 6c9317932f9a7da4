package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/derp/rpc"
)

// StartCommand begins job execution across the ranks named by --ranks
// (spec.md §6 "exec.start"), printing each streamed reply (start, then
// finish or exception) as it arrives.
func StartCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "start a job across the given ranks",
		Flags: append(ReadOnlyFlags(),
			&cli.Uint64Flag{Name: "id", Usage: "job id (caller-assigned, must be unique)", Required: true},
			&cli.StringFlag{Name: "ranks", Usage: "rank-set expression, e.g. 0-3,5", Required: true},
			&cli.IntFlag{Name: "userid", Usage: "user id to tag the job with"},
		),
		Action: startAction,
	}
}

func startAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for start", 1)
	}

	req := rpc.Request{Kind: "exec.start", Data: map[string]any{
		"id":     c.Uint64("id"),
		"ranks":  c.String("ranks"),
		"userid": uint32(c.Int("userid")),
		"reqid":  uuid.NewString(),
	}}

	return stream(c, req, func(resp rpc.Response) error {
		if resp.Error != "" {
			return cli.Exit(fmt.Sprintf("error: %s", resp.Error), 1)
		}
		fmt.Printf("%s %v\n", resp.Kind, resp.Data)
		return nil
	})
}
