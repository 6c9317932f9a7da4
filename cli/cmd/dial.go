package cmd

import (
	"fmt"
	"io"
	"net"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/derp/iox"
	"github.com/pithecene-io/derp/rpc"
)

// dial opens a connection to the root rank's control socket named by
// --socket.
func dial(c *cli.Context) (net.Conn, error) {
	path := c.String("socket")
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return conn, nil
}

// stream sends req over a fresh connection and invokes fn for every
// response frame the root sends back, in order, stopping when the root
// closes the connection (cmd/derpd/control.go closes after a
// non-streaming request's single frame, or after a streaming request's
// terminal finish/exception frame).
func stream(c *cli.Context, req rpc.Request, fn func(rpc.Response) error) error {
	conn, err := dial(c)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(conn)

	if err := rpc.WriteRequest(conn, req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	dec := rpc.NewFrameDecoder(conn)
	for {
		resp, err := rpc.ReadResponse(dec)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read response: %w", err)
		}
		if err := fn(resp); err != nil {
			return err
		}
	}
}

// call sends req and collects every response frame into a slice.
func call(c *cli.Context, req rpc.Request) ([]rpc.Response, error) {
	var out []rpc.Response
	err := stream(c, req, func(resp rpc.Response) error {
		out = append(out, resp)
		return nil
	})
	return out, err
}
