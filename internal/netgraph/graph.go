// Package netgraph folds packet events into a directed station
// interaction graph with per-pair traffic aggregates, pruning, stable
// ranking and an adjacency index for neighbor lookups.
package netgraph

import (
	"sort"

	"github.com/axterm-radio/netwatch/internal/ax25"
)

// Options configures graph construction.
type Options struct {
	ExpandVia    bool // expand intermediate digipeater hops into edges
	MinEdgeCount int  // drop edges observed fewer times than this
	GroupSSIDs   bool // merge all SSIDs of a callsign into one node
	NodeCap      int  // keep at most this many nodes (0 = unlimited)
}

// DefaultOptions returns graph options suitable for a live map.
func DefaultOptions() Options {
	return Options{
		ExpandVia:    true,
		MinEdgeCount: 1,
		NodeCap:      150,
	}
}

// Edge is a directed station pair with traffic aggregates. A -> B and B -> A
// are distinct edges.
type Edge struct {
	Source ax25.StationID `json:"source"`
	Target ax25.StationID `json:"target"`
	Count  int            `json:"count"`
	Bytes  int64          `json:"bytes"`
}

// Node is one station in the graph with its traffic counters.
type Node struct {
	ID       ax25.StationID `json:"id"`
	InCount  int            `json:"in_count"`
	OutCount int            `json:"out_count"`
	InBytes  int64          `json:"in_bytes"`
	OutBytes int64          `json:"out_bytes"`
	Degree   int            `json:"degree"`

	// GroupedSSIDs lists the concrete identifiers merged into this node.
	// It is never empty: an ungrouped node carries its own identifier.
	GroupedSSIDs []string `json:"grouped_ssids"`
}

// NeighborStat is one adjacency entry: traffic between a node and one of
// its neighbors, summed over both directions.
type NeighborStat struct {
	Neighbor ax25.StationID `json:"neighbor"`
	Count    int            `json:"count"`
	Bytes    int64          `json:"bytes"`
}

// Model is an immutable graph snapshot. Adjacency is consistent with
// Edges: both endpoints of every edge appear in each other's lists.
type Model struct {
	Nodes          []Node                            `json:"nodes"`
	Edges          []Edge                            `json:"edges"`
	Adjacency      map[ax25.StationID][]NeighborStat `json:"adjacency"`
	TruncatedNodes int                               `json:"truncated_nodes"`
}

// Node lookup by id; linear scan is fine at the node counts the cap allows.
func (m *Model) Node(id ax25.StationID) *Node {
	for i := range m.Nodes {
		if m.Nodes[i].ID == id {
			return &m.Nodes[i]
		}
	}
	return nil
}

// Build folds a batch of events into a graph model. Events without both
// endpoints resolvable contribute no edges; construction is pure and
// deterministic for a given batch.
func Build(events []ax25.PacketEvent, opts Options) *Model {
	type agg struct {
		count int
		bytes int64
	}
	pairs := make(map[[2]ax25.StationID]*agg)
	grouped := make(map[ax25.StationID]map[string]bool)

	resolve := func(id ax25.StationID) ax25.StationID {
		if !opts.GroupSSIDs {
			return id
		}
		base := ax25.StationID(id.Callsign())
		members := grouped[base]
		if members == nil {
			members = make(map[string]bool)
			grouped[base] = members
		}
		members[string(id)] = true
		return base
	}

	for _, ev := range events {
		if ev.From == "" || ev.To == "" {
			continue
		}

		path := make([]ax25.StationID, 0, len(ev.Via)+2)
		path = append(path, resolve(ev.From))
		if opts.ExpandVia {
			for _, hop := range ev.Via {
				if hop != "" {
					path = append(path, resolve(hop))
				}
			}
		}
		path = append(path, resolve(ev.To))

		for i := 0; i+1 < len(path); i++ {
			if path[i] == path[i+1] {
				// SSID grouping can collapse adjacent hops into the
				// same node; a station is not its own neighbor.
				continue
			}
			key := [2]ax25.StationID{path[i], path[i+1]}
			a := pairs[key]
			if a == nil {
				a = &agg{}
				pairs[key] = a
			}
			a.count++
			a.bytes += int64(ev.PayloadLen)
		}
	}

	// Prune, then rank by descending count with (source, target) as the
	// tie-break so repeated builds emit byte-identical edge lists.
	edges := make([]Edge, 0, len(pairs))
	for key, a := range pairs {
		if a.count < opts.MinEdgeCount {
			continue
		}
		edges = append(edges, Edge{Source: key[0], Target: key[1], Count: a.count, Bytes: a.bytes})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Count != edges[j].Count {
			return edges[i].Count > edges[j].Count
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	m := assemble(edges, grouped, opts)
	return m
}

// assemble builds nodes and adjacency from the ranked edge list,
// applying the node cap.
func assemble(edges []Edge, grouped map[ax25.StationID]map[string]bool, opts Options) *Model {
	nodeTraffic := make(map[ax25.StationID]int)
	for _, e := range edges {
		nodeTraffic[e.Source] += e.Count
		nodeTraffic[e.Target] += e.Count
	}

	ids := make([]ax25.StationID, 0, len(nodeTraffic))
	for id := range nodeTraffic {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if nodeTraffic[ids[i]] != nodeTraffic[ids[j]] {
			return nodeTraffic[ids[i]] > nodeTraffic[ids[j]]
		}
		return ids[i] < ids[j]
	})

	truncated := 0
	if opts.NodeCap > 0 && len(ids) > opts.NodeCap {
		truncated = len(ids) - opts.NodeCap
		ids = ids[:opts.NodeCap]
	}
	keep := make(map[ax25.StationID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	kept := edges[:0:0]
	for _, e := range edges {
		if keep[e.Source] && keep[e.Target] {
			kept = append(kept, e)
		}
	}

	nodes := make(map[ax25.StationID]*Node, len(ids))
	for _, id := range ids {
		n := &Node{ID: id}
		if members := grouped[id]; len(members) > 0 {
			for m := range members {
				n.GroupedSSIDs = append(n.GroupedSSIDs, m)
			}
			sort.Strings(n.GroupedSSIDs)
		} else {
			n.GroupedSSIDs = []string{string(id)}
		}
		nodes[id] = n
	}

	adjacency := make(map[ax25.StationID][]NeighborStat)
	neighborIdx := make(map[[2]ax25.StationID]int)
	addNeighbor := func(a, b ax25.StationID, count int, bytes int64) {
		key := [2]ax25.StationID{a, b}
		if i, ok := neighborIdx[key]; ok {
			adjacency[a][i].Count += count
			adjacency[a][i].Bytes += bytes
			return
		}
		neighborIdx[key] = len(adjacency[a])
		adjacency[a] = append(adjacency[a], NeighborStat{Neighbor: b, Count: count, Bytes: bytes})
	}

	for _, e := range kept {
		src, dst := nodes[e.Source], nodes[e.Target]
		src.OutCount += e.Count
		src.OutBytes += e.Bytes
		dst.InCount += e.Count
		dst.InBytes += e.Bytes
		addNeighbor(e.Source, e.Target, e.Count, e.Bytes)
		addNeighbor(e.Target, e.Source, e.Count, e.Bytes)
	}

	for id, list := range adjacency {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Count != list[j].Count {
				return list[i].Count > list[j].Count
			}
			return list[i].Neighbor < list[j].Neighbor
		})
		adjacency[id] = list
		nodes[id].Degree = len(list)
	}

	out := &Model{
		Edges:          kept,
		Adjacency:      adjacency,
		TruncatedNodes: truncated,
	}
	for _, id := range ids {
		out.Nodes = append(out.Nodes, *nodes[id])
	}
	return out
}
