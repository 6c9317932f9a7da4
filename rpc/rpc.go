package rpc

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Request is one client->root control-channel message (spec.md §6
// "Client -> root": exec.start, exec.kill, ping).
type Request struct {
	Kind string         `msgpack:"kind"`
	Data map[string]any `msgpack:"data"`
}

// Response is one root->client reply frame. exec.start yields a short
// stream of these (start, then finish or exception); exec.kill and ping
// yield exactly one.
type Response struct {
	Kind  string         `msgpack:"kind"`
	Data  map[string]any `msgpack:"data,omitempty"`
	Error string         `msgpack:"error,omitempty"`
}

// WriteRequest encodes and writes req as one length-prefixed frame.
func WriteRequest(w io.Writer, req Request) error {
	payload, err := msgpack.Marshal(req)
	if err != nil {
		return err
	}
	_, err = w.Write(EncodeFrame(payload))
	return err
}

// ReadRequest reads and decodes one Request frame.
func ReadRequest(d *FrameDecoder) (Request, error) {
	var req Request
	payload, err := d.ReadFrame()
	if err != nil {
		return req, err
	}
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return req, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode request", Err: err}
	}
	return req, nil
}

// WriteResponse encodes and writes resp as one length-prefixed frame.
func WriteResponse(w io.Writer, resp Response) error {
	payload, err := msgpack.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(EncodeFrame(payload))
	return err
}

// ReadResponse reads and decodes one Response frame.
func ReadResponse(d *FrameDecoder) (Response, error) {
	var resp Response
	payload, err := d.ReadFrame()
	if err != nil {
		return resp, err
	}
	if err := msgpack.Unmarshal(payload, &resp); err != nil {
		return resp, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode response", Err: err}
	}
	return resp, nil
}
