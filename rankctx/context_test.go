package rankctx

import (
	"testing"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/topology"
	"github.com/pithecene-io/derp/transport"
	"github.com/pithecene-io/derp/wire"
)

func buildTree(t *testing.T) *topology.Tree {
	t.Helper()
	root := &topology.Node{Rank: 0, Children: []*topology.Node{
		{Rank: 1, Children: []*topology.Node{{Rank: 2}, {Rank: 3}}},
	}}
	tree, err := topology.Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

func TestNewWiresPeerTableFromChildren(t *testing.T) {
	tree := buildTree(t)
	tr := transport.NewInproc()
	ctx, err := New(1, tree, tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	peers := ctx.Peers.Peers()
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(peers))
	}
	if peers[0].Rank != 2 || peers[1].Rank != 3 {
		t.Errorf("peer ranks = %d,%d, want 2,3", peers[0].Rank, peers[1].Rank)
	}
}

func TestDispatchFrameActionInvokesAction(t *testing.T) {
	tree := buildTree(t)
	tr := transport.NewInproc()
	ctx, err := New(1, tree, tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var gotRanks idset.Set
	_ = ctx.Router.RegisterAction(wire.TypeStart, func(ranks idset.Set, data map[string]any) error {
		gotRanks = ranks
		return nil
	})

	ctx.dispatchFrame(transport.Frame{
		From: 0, To: 1, Direction: transport.Action,
		Type: wire.TypeStart, Idset: idset.New(2, 3),
	})

	if gotRanks.String() != "2-3" {
		t.Errorf("action saw ranks %q, want 2-3", gotRanks.String())
	}
}

func TestDispatchFrameNotifyStashesFrom(t *testing.T) {
	tree := buildTree(t)
	tr := transport.NewInproc()
	ctx, err := New(0, tree, tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var gotFrom uint32
	_ = ctx.Router.RegisterNotify(wire.TypeFinish, func(ranks idset.Set, data map[string]any) error {
		gotFrom, _ = data["_from"].(uint32)
		return nil
	})

	ctx.dispatchFrame(transport.Frame{
		From: 1, To: 0, Direction: transport.Notify,
		Type: wire.TypeFinish, Idset: idset.New(2, 3),
	})

	if gotFrom != 1 {
		t.Errorf("notify saw _from = %d, want 1", gotFrom)
	}
}
