package api

import (
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/axterm-radio/netwatch/internal/httputil"
	"github.com/axterm-radio/netwatch/internal/traffic"
)

// trafficChart renders the snapshot's packet and byte series as a line
// chart. This is a convenience view for operators; programmatic consumers
// use /api/series.
func (s *Server) trafficChart(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Traffic",
			Subtitle: "packets and bytes per " + snap.Traffic.Packets.Bucket.String() + " bucket",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{}),
	)

	line.SetXAxis(seriesLabels(snap.Traffic.Packets)).
		AddSeries("packets", seriesValues(snap.Traffic.Packets)).
		AddSeries("bytes", seriesValues(snap.Traffic.Bytes))

	if err := line.Render(w); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "failed to render chart")
	}
}

func seriesLabels(s traffic.Series) []string {
	labels := make([]string, len(s.Points))
	for i, p := range s.Points {
		labels[i] = p.BucketStart.Format("01-02 15:04")
	}
	return labels
}

func seriesValues(s traffic.Series) []opts.LineData {
	values := make([]opts.LineData, len(s.Points))
	for i, p := range s.Points {
		values[i] = opts.LineData{Value: p.Value}
	}
	return values
}
