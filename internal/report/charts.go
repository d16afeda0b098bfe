package report

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wildtrack-data/movement.report/internal/homerange"
	"github.com/wildtrack-data/movement.report/internal/track"
	"github.com/wildtrack-data/movement.report/internal/units"
)

// Viridis ramp, matches the palette the field biologists use in their
// notebooks.
var chartPalette = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleMovementChart renders an individual's fixes as an XY scatter (HTML),
// colored by step speed. Query params mirror /api/fixes; 'individual' is
// required so the track is readable.
func (s *Server) handleMovementChart(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseFilter(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(filter.individuals) != 1 {
		s.writeJSONError(w, http.StatusBadRequest, "exactly one 'individual' is required")
		return
	}
	name := filter.individuals[0]

	fixes, err := s.store.GetFixes(r.Context(), filter.storeFilter())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(fixes) == 0 {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no fixes for %q", name))
		return
	}

	// Speed per fix: the step ending at the fix, zero for the first one.
	speeds := make(map[int]float64, len(fixes))
	for i, step := range track.Steps(fixes) {
		speeds[i+1] = step.SpeedMetersPerHour
	}

	data := make([]opts.ScatterData, 0, len(fixes))
	minX, maxX := fixes[0].X, fixes[0].X
	minY, maxY := fixes[0].Y, fixes[0].Y
	maxSpeed := 0.0
	for i, f := range fixes {
		minX, maxX = math.Min(minX, f.X), math.Max(maxX, f.X)
		minY, maxY = math.Min(minY, f.Y), math.Max(maxY, f.Y)
		speed := speeds[i]
		if speed > maxSpeed {
			maxSpeed = speed
		}
		data = append(data, opts.ScatterData{Value: []interface{}{f.X, f.Y, speed}})
	}
	if maxSpeed == 0 {
		maxSpeed = 1
	}

	// Pad so edge fixes stay visible.
	padX := (maxX - minX) * 0.05
	padY := (maxY - minY) * 0.05
	if padX == 0 {
		padX = 1.0
	}
	if padY == 0 {
		padY = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Movement Track", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Movement: %s", name), Subtitle: fmt.Sprintf("fixes=%d season=%s", len(data), orAll(filter.season))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX - padX, Max: maxX + padX, Name: "Easting (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY - padY, Max: maxY + padY, Name: "Northing (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSpeed),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: chartPalette},
		}),
	)
	scatter.AddSeries("fixes", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleHomeRangeChart renders per-individual home range areas as a grouped
// bar chart (MCP, KDE and core series).
func (s *Server) handleHomeRangeChart(w http.ResponseWriter, r *http.Request) {
	filter, err := s.parseFilter(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	fixes, err := s.store.GetFixes(r.Context(), filter.storeFilter())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	estimates := homerange.ComputeAll(filter.restrict(fixes), s.rangeOptions(filter.season))
	if len(estimates) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no individuals match the filter")
		return
	}

	names := make([]string, 0, len(estimates))
	mcp := make([]opts.BarData, 0, len(estimates))
	kde := make([]opts.BarData, 0, len(estimates))
	core := make([]opts.BarData, 0, len(estimates))
	for _, est := range estimates {
		names = append(names, est.Individual)
		mcp = append(mcp, opts.BarData{Value: units.ConvertArea(est.MCPAreaKm2, filter.unit)})
		kde = append(kde, opts.BarData{Value: units.ConvertArea(est.KDEAreaKm2, filter.unit)})
		core = append(core, opts.BarData{Value: units.ConvertArea(est.CoreAreaKm2, filter.unit)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Home Ranges", Theme: "dark", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Home Range Areas", Subtitle: fmt.Sprintf("unit=%s season=%s", filter.unit, orAll(filter.season))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Area (%s)", filter.unit), NameLocation: "middle", NameGap: 45}),
	)
	bar.SetXAxis(names).
		AddSeries(fmt.Sprintf("MCP %.0f%%", s.cfg.GetMCPPercent()), mcp).
		AddSeries(fmt.Sprintf("KDE %.0f%%", s.cfg.GetKDEPercent()), kde).
		AddSeries(fmt.Sprintf("Core %.0f%%", s.cfg.GetCorePercent()), core,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func orAll(season string) string {
	if season == "" {
		return "all"
	}
	return season
}
