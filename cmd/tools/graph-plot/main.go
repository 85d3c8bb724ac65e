// Package main renders the network graph and its current layout to a PNG.
// It pulls /api/graph and /api/layout from a running netwatch instance and
// draws edges as lines and stations as labelled points.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/axterm-radio/netwatch/internal/httputil"
	"github.com/axterm-radio/netwatch/internal/layout"
	"github.com/axterm-radio/netwatch/internal/netgraph"
)

var (
	baseURL = flag.String("base", "http://localhost:8080", "netwatch base URL")
	outFile = flag.String("out", "graph.png", "Output PNG path")
	size    = flag.Float64("size", 8, "Plot size in inches")
)

// fetchJSON GETs url and decodes the body into v.
func fetchJSON(client httputil.Client, url string, v interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// render draws the graph using the layout's unit-square positions.
func render(graph *netgraph.Model, state *layout.State) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Network graph"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.HideAxes()

	for _, edge := range graph.Edges {
		a, okA := state.Positions[edge.Source]
		b, okB := state.Positions[edge.Target]
		if !okA || !okB {
			continue
		}
		line, err := plotter.NewLine(plotter.XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}})
		if err != nil {
			return nil, fmt.Errorf("failed to draw edge: %w", err)
		}
		p.Add(line)
	}

	pts := make(plotter.XYs, 0, len(graph.Nodes))
	labels := make([]string, 0, len(graph.Nodes))
	for _, node := range graph.Nodes {
		pos, ok := state.Positions[node.ID]
		if !ok {
			continue
		}
		pts = append(pts, plotter.XY{X: pos.X, Y: pos.Y})
		labels = append(labels, string(node.ID))
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to draw stations: %w", err)
	}
	p.Add(scatter)

	nodeLabels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("failed to draw labels: %w", err)
	}
	p.Add(nodeLabels)

	return p, nil
}

func main() {
	flag.Parse()

	client := httputil.NewStandardClient(nil)

	var graph netgraph.Model
	if err := fetchJSON(client, *baseURL+"/api/graph", &graph); err != nil {
		log.Fatalf("Failed to fetch graph: %v", err)
	}
	var state layout.State
	if err := fetchJSON(client, *baseURL+"/api/layout", &state); err != nil {
		log.Fatalf("Failed to fetch layout: %v", err)
	}

	p, err := render(&graph, &state)
	if err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	inches := vg.Length(*size) * vg.Inch
	if err := p.Save(inches, inches, *outFile); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	log.Printf("wrote %s (%d nodes, %d edges)", *outFile, len(graph.Nodes), len(graph.Edges))
}
