package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/iox"
	"github.com/pithecene-io/derp/rankctx"
	"github.com/pithecene-io/derp/rpc"
	"github.com/pithecene-io/derp/topology"
	"github.com/pithecene-io/derp/wire"
)

// controlServer accepts derpctl connections on a unix socket and bridges
// each request onto rctx.ClientReqs, streaming the replies back as rpc
// frames (spec.md §6 "Client -> root").
type controlServer struct {
	rctx *rankctx.Context
	ln   net.Listener
}

func listenControl(rctx *rankctx.Context, path string) (*controlServer, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &controlServer{rctx: rctx, ln: ln}, nil
}

func (s *controlServer) Close() {
	_ = s.ln.Close()
}

// Serve accepts connections until the listener is closed. Each
// connection is handled on its own goroutine: one request in, one or more
// responses out, connection closed.
func (s *controlServer) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *controlServer) handleConn(conn net.Conn) {
	defer iox.DiscardClose(conn)

	dec := rpc.NewFrameDecoder(conn)
	req, err := rpc.ReadRequest(dec)
	if err != nil {
		if err != io.EOF {
			s.rctx.Log.Warn("control request decode failed", map[string]any{"err": err.Error()})
		}
		return
	}

	if req.Kind == "topology" {
		_ = rpc.WriteResponse(conn, topologyResponse(s.rctx))
		return
	}

	data, streaming, err := translate(req)
	if err != nil {
		_ = rpc.WriteResponse(conn, rpc.Response{Error: err.Error()})
		return
	}

	reply := make(chan any, 2)
	s.rctx.ClientReqs <- rankctx.ClientRequest{Kind: req.Kind, Reply: reply, Data: data}

	for {
		resp := toResponse(<-reply)
		if err := rpc.WriteResponse(conn, resp); err != nil {
			return
		}
		// exec.start streams a non-terminal "start" frame before its
		// terminal finish/exception frame; every other request kind
		// replies exactly once.
		if !streaming || resp.Kind == "finish" || resp.Kind == "exception" {
			return
		}
	}
}

// translate converts a wire-shaped rpc.Request into the typed payload
// rankctx.ClientRequest.Data must carry, and reports whether the
// request's replies form a stream (exec.start: start, then
// finish/exception) or a single frame (exec.kill, ping).
func translate(req rpc.Request) (any, bool, error) {
	switch req.Kind {
	case "exec.start":
		ranks, err := ranksFromData(req.Data, "ranks")
		if err != nil {
			return nil, false, err
		}
		id, _ := req.Data["id"].(uint64)
		userID, _ := req.Data["userid"].(uint32)
		reqID, _ := req.Data["reqid"].(string)
		return wire.ExecStartRequest{ID: id, UserID: userID, Ranks: ranks, ReqID: reqID}, true, nil

	case "exec.kill":
		ranks, err := ranksFromData(req.Data, "ranks")
		if err != nil {
			return nil, false, err
		}
		id, _ := req.Data["id"].(uint64)
		signal, _ := req.Data["signal"].(int)
		return wire.ExecKillRequest{ID: id, Signal: signal, Ranks: ranks}, false, nil

	case "ping":
		ranks, err := ranksFromData(req.Data, "ranks")
		if err != nil {
			return nil, false, err
		}
		return wire.PingRequest{Ranks: ranks}, false, nil

	default:
		return nil, false, fmt.Errorf("unknown request kind %q", req.Kind)
	}
}

// topologyResponse serializes the rank's static tree (spec.md §3
// "Topology") for derpctl's topology command. The tree never changes
// after load, so this needs no synchronization with the reactor loop.
func topologyResponse(rctx *rankctx.Context) rpc.Response {
	return rpc.Response{Kind: "topology", Data: map[string]any{
		"self": uint32(rctx.Self),
		"tree": nodeToMap(rctx.Topology.Root),
	}}
}

func nodeToMap(n *topology.Node) map[string]any {
	children := make([]any, len(n.Children))
	for i, c := range n.Children {
		children[i] = nodeToMap(c)
	}
	return map[string]any{"rank": uint32(n.Rank), "children": children}
}

func ranksFromData(data map[string]any, key string) (idset.Set, error) {
	raw, _ := data[key].(string)
	if raw == "" {
		return idset.Set{}, fmt.Errorf("%s: missing required %q field", key, key)
	}
	return idset.Decode(raw)
}

// toResponse adapts whatever notifies.go sent down the reply channel
// (wire.ExecStartResponse, wire.PingResponse, an error, or an empty ack)
// into a single rpc.Response frame shape.
func toResponse(v any) rpc.Response {
	switch r := v.(type) {
	case wire.ExecStartResponse:
		return rpc.Response{Kind: r.Type, Data: r.Data}
	case wire.PingResponse:
		return rpc.Response{Kind: "ping-reply", Data: map[string]any{"ranks": idset.Encode(r.Ranks)}}
	case error:
		return rpc.Response{Kind: "error", Error: r.Error()}
	default:
		return rpc.Response{Kind: "ok"}
	}
}
