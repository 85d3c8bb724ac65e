// Package layout runs a force-directed spring/repulsion simulation over a
// network graph model. Coordinates are normalized to the unit square so the
// presentation layer can scale them to any viewport. All entry points are
// pure functions from (model, state, params) to a new state; the caller owns
// the state and decides when to stop ticking (typically when MinEnergy falls
// below a threshold).
package layout

import (
	"hash/fnv"
	"math"
	"sort"

	"github.com/axterm-radio/netwatch/internal/ax25"
	"github.com/axterm-radio/netwatch/internal/netgraph"
)

// Params tunes the physics simulation.
type Params struct {
	RepulsionStrength float64 // pairwise push, scaled by 1/d^2
	SpringStrength    float64 // per-edge pull toward rest length
	SpringRestLength  float64 // in unit-square coordinates
	Damping           float64 // velocity retained per iteration, (0,1)
	TimeStep          float64 // integration step
	IterationsPerTick int
}

// DefaultParams returns values tuned for graphs of a few dozen nodes.
func DefaultParams() Params {
	return Params{
		RepulsionStrength: 0.002,
		SpringStrength:    2.0,
		SpringRestLength:  0.18,
		Damping:           0.85,
		TimeStep:          0.02,
		IterationsPerTick: 10,
	}
}

// distanceFloor keeps coincident nodes from producing unbounded repulsion.
const distanceFloor = 0.01

// Vec is a 2D point or force in unit-square space.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State holds per-node positions and velocities plus the convergence signal.
// MinEnergy never increases across ticks on the same evolving state, so a
// caller polling it sees monotone convergence even when a single tick jitters
// upward.
type State struct {
	Positions  map[ax25.StationID]Vec `json:"positions"`
	Velocities map[ax25.StationID]Vec `json:"velocities"`
	Energy     float64                `json:"energy"`
	MinEnergy  float64                `json:"min_energy"`
}

// NewState returns an empty layout state ready for seeding.
func NewState() State {
	return State{
		Positions:  make(map[ax25.StationID]Vec),
		Velocities: make(map[ax25.StationID]Vec),
		MinEnergy:  math.MaxFloat64,
	}
}

// seedPosition derives a stable pseudo-random unit-square position from the
// node id and a caller-supplied seed. Hash-based rather than wall-clock so
// layouts are reproducible across runs and in tests.
func seedPosition(id ax25.StationID, seed uint64) Vec {
	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(seed >> (8 * i))
	}
	h.Write(buf[:])
	h.Write([]byte(id))
	sum := h.Sum64()
	x := float64(uint32(sum>>32)) / float64(math.MaxUint32)
	y := float64(uint32(sum)) / float64(math.MaxUint32)
	return Vec{X: x, Y: y}
}

// Seed returns a state covering exactly the nodes in the model: previous
// positions and velocities are carried over, new nodes get deterministic
// seeded positions, and nodes no longer in the model are dropped. The input
// state is not modified.
func Seed(model *netgraph.Model, prev State, seed uint64) State {
	next := State{
		Positions:  make(map[ax25.StationID]Vec, len(model.Nodes)),
		Velocities: make(map[ax25.StationID]Vec, len(model.Nodes)),
		Energy:     prev.Energy,
		MinEnergy:  prev.MinEnergy,
	}
	if next.MinEnergy == 0 && len(prev.Positions) == 0 {
		next.MinEnergy = math.MaxFloat64
	}
	for _, n := range model.Nodes {
		if p, ok := prev.Positions[n.ID]; ok {
			next.Positions[n.ID] = p
			next.Velocities[n.ID] = prev.Velocities[n.ID]
		} else {
			next.Positions[n.ID] = seedPosition(n.ID, seed)
			next.Velocities[n.ID] = Vec{}
		}
	}
	return next
}

// Tick advances the simulation by IterationsPerTick iterations and returns a
// new state; the input state is left untouched. Cost is O(n^2) per iteration
// in node count, so the caller bounds n via the graph node cap before
// invoking. Tick never blocks and has no internal cancellation.
func Tick(model *netgraph.Model, prev State, p Params) State {
	ids := make([]ax25.StationID, 0, len(prev.Positions))
	for id := range prev.Positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pos := make(map[ax25.StationID]Vec, len(ids))
	vel := make(map[ax25.StationID]Vec, len(ids))
	for _, id := range ids {
		pos[id] = prev.Positions[id]
		vel[id] = prev.Velocities[id]
	}

	maxCount := 0
	for _, e := range model.Edges {
		if e.Count > maxCount {
			maxCount = e.Count
		}
	}

	energy := 0.0
	for iter := 0; iter < p.IterationsPerTick; iter++ {
		forces := make(map[ax25.StationID]Vec, len(ids))

		// Pairwise repulsion, inverse-square with a distance floor.
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				dx := pos[a].X - pos[b].X
				dy := pos[a].Y - pos[b].Y
				dist := math.Hypot(dx, dy)
				if dist < distanceFloor {
					dist = distanceFloor
					// Coincident nodes have no direction; nudge along x.
					dx, dy = distanceFloor, 0
				}
				f := p.RepulsionStrength / (dist * dist)
				ux, uy := dx/dist, dy/dist
				fa := forces[a]
				fa.X += ux * f
				fa.Y += uy * f
				forces[a] = fa
				fb := forces[b]
				fb.X -= ux * f
				fb.Y -= uy * f
				forces[b] = fb
			}
		}

		// Edge springs pull endpoints toward the rest length, weighted by
		// relative edge traffic.
		for _, e := range model.Edges {
			pa, oka := pos[e.Source]
			pb, okb := pos[e.Target]
			if !oka || !okb {
				continue
			}
			dx := pb.X - pa.X
			dy := pb.Y - pa.Y
			dist := math.Hypot(dx, dy)
			if dist < distanceFloor {
				dist = distanceFloor
			}
			weight := 1.0
			if maxCount > 0 {
				weight = float64(e.Count) / float64(maxCount)
			}
			f := p.SpringStrength * (dist - p.SpringRestLength) * weight
			ux, uy := dx/dist, dy/dist
			fa := forces[e.Source]
			fa.X += ux * f
			fa.Y += uy * f
			forces[e.Source] = fa
			fb := forces[e.Target]
			fb.X -= ux * f
			fb.Y -= uy * f
			forces[e.Target] = fb
		}

		// Integrate and clamp back into the unit square.
		for _, id := range ids {
			v := vel[id]
			f := forces[id]
			v.X = (v.X + f.X*p.TimeStep) * p.Damping
			v.Y = (v.Y + f.Y*p.TimeStep) * p.Damping
			vel[id] = v

			pt := pos[id]
			pt.X = clamp01(pt.X + v.X*p.TimeStep)
			pt.Y = clamp01(pt.Y + v.Y*p.TimeStep)
			pos[id] = pt

			energy += v.X*v.X + v.Y*v.Y
		}
	}

	next := State{
		Positions:  pos,
		Velocities: vel,
		Energy:     energy,
		MinEnergy:  prev.MinEnergy,
	}
	if next.MinEnergy == 0 && len(prev.Positions) == 0 {
		next.MinEnergy = math.MaxFloat64
	}
	if energy < next.MinEnergy {
		next.MinEnergy = energy
	}
	return next
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
