package netgraph

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/axterm-radio/netwatch/internal/ax25"
)

func ev(from, to string, via ...string) ax25.PacketEvent {
	hops := make([]ax25.StationID, len(via))
	for i, v := range via {
		hops[i] = ax25.StationID(v)
	}
	return ax25.PacketEvent{
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		From:       ax25.StationID(from),
		To:         ax25.StationID(to),
		Via:        hops,
		PayloadLen: 10,
	}
}

func TestBuildBasicEdges(t *testing.T) {
	events := []ax25.PacketEvent{
		ev("K0EPI", "N0CALL"),
		ev("K0EPI", "N0CALL"),
		ev("N0CALL", "K0EPI"),
	}

	m := Build(events, Options{MinEdgeCount: 1})

	if len(m.Edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(m.Edges))
	}
	// Direction matters: A->B and B->A are distinct.
	if m.Edges[0].Source != "K0EPI" || m.Edges[0].Target != "N0CALL" || m.Edges[0].Count != 2 {
		t.Errorf("edge 0 = %+v", m.Edges[0])
	}
	if m.Edges[1].Source != "N0CALL" || m.Edges[1].Count != 1 {
		t.Errorf("edge 1 = %+v", m.Edges[1])
	}
	if m.Edges[0].Bytes != 20 {
		t.Errorf("edge 0 bytes = %d, want 20", m.Edges[0].Bytes)
	}
}

func TestBuildDeterministic(t *testing.T) {
	events := []ax25.PacketEvent{
		ev("A1A", "B1B"),
		ev("B1B", "C1C"),
		ev("C1C", "A1A"),
		ev("A1A", "B1B", "D1D"),
	}

	first := Build(events, Options{ExpandVia: true, MinEdgeCount: 1})
	second := Build(events, Options{ExpandVia: true, MinEdgeCount: 1})

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated builds differ (-first +second):\n%s", diff)
	}
}

func TestBuildEdgeOrdering(t *testing.T) {
	var events []ax25.PacketEvent
	// C1C->D1D three times, A1A->B1B twice, then two single edges that
	// tie on count and must order lexicographically.
	for i := 0; i < 3; i++ {
		events = append(events, ev("C1C", "D1D"))
	}
	for i := 0; i < 2; i++ {
		events = append(events, ev("A1A", "B1B"))
	}
	events = append(events, ev("B1B", "A1A"), ev("A1A", "C1C"))

	m := Build(events, Options{MinEdgeCount: 1})

	want := [][2]ax25.StationID{
		{"C1C", "D1D"},
		{"A1A", "B1B"},
		{"A1A", "C1C"},
		{"B1B", "A1A"},
	}
	if len(m.Edges) != len(want) {
		t.Fatalf("got %d edges, want %d", len(m.Edges), len(want))
	}
	for i, w := range want {
		if m.Edges[i].Source != w[0] || m.Edges[i].Target != w[1] {
			t.Errorf("edge %d = %s->%s, want %s->%s", i, m.Edges[i].Source, m.Edges[i].Target, w[0], w[1])
		}
	}
}

func TestBuildViaExpansion(t *testing.T) {
	events := []ax25.PacketEvent{ev("A1A", "C1C", "B1B")}

	expanded := Build(events, Options{ExpandVia: true, MinEdgeCount: 1})
	if len(expanded.Edges) != 2 {
		t.Fatalf("expanded: got %d edges, want 2 (A->B, B->C)", len(expanded.Edges))
	}

	direct := Build(events, Options{ExpandVia: false, MinEdgeCount: 1})
	if len(direct.Edges) != 1 {
		t.Fatalf("direct: got %d edges, want 1", len(direct.Edges))
	}
	if direct.Edges[0].Source != "A1A" || direct.Edges[0].Target != "C1C" {
		t.Errorf("direct edge = %+v", direct.Edges[0])
	}
}

func TestBuildMinEdgeCountMonotone(t *testing.T) {
	events := []ax25.PacketEvent{
		ev("A1A", "B1B"), ev("A1A", "B1B"), ev("A1A", "B1B"),
		ev("B1B", "C1C"), ev("B1B", "C1C"),
		ev("C1C", "A1A"),
	}

	prev := -1
	for threshold := 1; threshold <= 4; threshold++ {
		m := Build(events, Options{MinEdgeCount: threshold})
		total := 0
		for _, e := range m.Edges {
			total += e.Count
		}
		if prev >= 0 && total > prev {
			t.Errorf("edge count sum increased from %d to %d at threshold %d", prev, total, threshold)
		}
		prev = total
	}
}

func TestBuildSkipsUnresolvableEvents(t *testing.T) {
	events := []ax25.PacketEvent{
		{From: "A1A", To: ""},
		{From: "", To: "B1B"},
		{From: "", To: ""},
	}
	m := Build(events, Options{MinEdgeCount: 1})
	if len(m.Edges) != 0 || len(m.Nodes) != 0 {
		t.Errorf("got %d edges, %d nodes from unresolvable events", len(m.Edges), len(m.Nodes))
	}
}

func TestBuildGroupSSIDs(t *testing.T) {
	events := []ax25.PacketEvent{
		ev("K0EPI-1", "N0CALL"),
		ev("K0EPI-7", "N0CALL"),
	}

	m := Build(events, Options{MinEdgeCount: 1, GroupSSIDs: true})

	node := m.Node("K0EPI")
	if node == nil {
		t.Fatal("expected merged K0EPI node")
	}
	want := []string{"K0EPI-1", "K0EPI-7"}
	if diff := cmp.Diff(want, node.GroupedSSIDs); diff != "" {
		t.Errorf("GroupedSSIDs mismatch (-want +got):\n%s", diff)
	}
	if m.Node("K0EPI").OutCount != 2 {
		t.Errorf("merged OutCount = %d, want 2", m.Node("K0EPI").OutCount)
	}
}

func TestBuildGroupedSSIDsNeverEmpty(t *testing.T) {
	m := Build([]ax25.PacketEvent{ev("A1A", "B1B")}, Options{MinEdgeCount: 1})
	for _, n := range m.Nodes {
		if len(n.GroupedSSIDs) == 0 {
			t.Errorf("node %s has empty GroupedSSIDs", n.ID)
		}
		if n.GroupedSSIDs[0] != string(n.ID) {
			t.Errorf("node %s GroupedSSIDs = %v, want its own id", n.ID, n.GroupedSSIDs)
		}
	}
}

func TestBuildNodeCap(t *testing.T) {
	var events []ax25.PacketEvent
	// A1A is the hub; the spokes have less traffic.
	spokes := []string{"B1B", "C1C", "D1D", "E1E"}
	for _, s := range spokes {
		events = append(events, ev("A1A", s), ev("A1A", s))
	}
	events = append(events, ev("B1B", "A1A"))

	m := Build(events, Options{MinEdgeCount: 1, NodeCap: 3})

	if len(m.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(m.Nodes))
	}
	if m.TruncatedNodes != 2 {
		t.Errorf("TruncatedNodes = %d, want 2", m.TruncatedNodes)
	}
	// Edges touching dropped nodes must be gone.
	for _, e := range m.Edges {
		if m.Node(e.Source) == nil || m.Node(e.Target) == nil {
			t.Errorf("edge %s->%s references a dropped node", e.Source, e.Target)
		}
	}
}

func TestBuildAdjacencyConsistent(t *testing.T) {
	events := []ax25.PacketEvent{
		ev("A1A", "B1B"),
		ev("B1B", "C1C"),
		ev("A1A", "C1C"),
	}
	m := Build(events, Options{MinEdgeCount: 1})

	for _, e := range m.Edges {
		if !hasNeighbor(m.Adjacency[e.Source], e.Target) {
			t.Errorf("adjacency[%s] missing %s", e.Source, e.Target)
		}
		if !hasNeighbor(m.Adjacency[e.Target], e.Source) {
			t.Errorf("adjacency[%s] missing %s", e.Target, e.Source)
		}
	}

	if n := m.Node("A1A"); n == nil || n.Degree != 2 {
		t.Errorf("A1A degree = %+v, want 2", n)
	}
}

func hasNeighbor(list []NeighborStat, id ax25.StationID) bool {
	for _, ns := range list {
		if ns.Neighbor == id {
			return true
		}
	}
	return false
}
