// Package report serves the movement analytics over HTTP: a JSON API for
// rosters, fixes, period statistics, home ranges and seasonal summaries, plus
// HTML chart views. Handlers are thin; all computation lives in track,
// homerange and summary.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wildtrack-data/movement.report/internal/config"
	"github.com/wildtrack-data/movement.report/internal/homerange"
	"github.com/wildtrack-data/movement.report/internal/monitoring"
	"github.com/wildtrack-data/movement.report/internal/summary"
	"github.com/wildtrack-data/movement.report/internal/track"
	"github.com/wildtrack-data/movement.report/internal/trackdb"
	"github.com/wildtrack-data/movement.report/internal/units"
)

const dateLayout = "2006-01-02"

// Server exposes the analytics API over a fix store.
type Server struct {
	store *trackdb.FixStore
	cfg   *config.AnalysisConfig
	cache *resultCache
}

// NewServer creates a Server over the given store and configuration.
func NewServer(store *trackdb.FixStore, cfg *config.AnalysisConfig) *Server {
	return &Server{
		store: store,
		cfg:   cfg,
		cache: newResultCache(cfg.GetCacheTTL()),
	}
}

// ServeMux returns the route table for the report server.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/individuals", s.handleIndividuals)
	mux.HandleFunc("/api/seasons", s.handleSeasons)
	mux.HandleFunc("/api/fixes", s.handleFixes)
	mux.HandleFunc("/api/steps", s.handleSteps)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/homerange", s.handleHomeRange)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/charts/movement", s.handleMovementChart)
	mux.HandleFunc("/charts/homerange", s.handleHomeRangeChart)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		monitoring.Logf("failed to encode json error response: %v", err)
	}
}

// requestFilter is the query surface shared by the analytics endpoints. The
// 'individual' parameter accepts a comma-separated list.
type requestFilter struct {
	individuals []string
	start       time.Time
	end         time.Time
	season      string
	unit        string
}

func (s *Server) parseFilter(r *http.Request) (requestFilter, error) {
	q := r.URL.Query()
	f := requestFilter{
		individuals: individualsParam(q.Get("individual")),
		season:      q.Get("season"),
		unit:        q.Get("units"),
	}
	if f.unit == "" {
		f.unit = s.cfg.GetAreaUnit()
	} else if !units.IsValid(f.unit) {
		return f, fmt.Errorf("invalid 'units' parameter (valid: %s)", units.GetValidUnitsString())
	}

	loc := s.cfg.GetLocation()
	if v := q.Get("start"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return f, fmt.Errorf("invalid 'start' date %q, want YYYY-MM-DD", v)
		}
		f.start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return f, fmt.Errorf("invalid 'end' date %q, want YYYY-MM-DD", v)
		}
		// End date is inclusive.
		f.end = t.Add(24*time.Hour - time.Second)
	}
	return f, nil
}

func (f requestFilter) storeFilter() trackdb.FixFilter {
	sf := trackdb.FixFilter{
		Start:  f.start,
		End:    f.end,
		Season: f.season,
	}
	if len(f.individuals) == 1 {
		sf.Individual = f.individuals[0]
	}
	return sf
}

// restrict keeps only fixes belonging to the requested individuals. The
// store filter already handled the single-individual case.
func (f requestFilter) restrict(fixes []track.Fix) []track.Fix {
	if len(f.individuals) < 2 {
		return fixes
	}
	wanted := make(map[string]bool, len(f.individuals))
	for _, name := range f.individuals {
		wanted[name] = true
	}
	out := fixes[:0]
	for _, fix := range fixes {
		if wanted[fix.Individual] {
			out = append(out, fix)
		}
	}
	return out
}

func (s *Server) handleIndividuals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	roster, err := s.store.Individuals(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, map[string]interface{}{"individuals": roster})
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	seasons, err := s.store.Seasons(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, map[string]interface{}{"seasons": seasons})
}

func (s *Server) handleFixes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
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
	fixes = filter.restrict(fixes)
	s.writeJSON(w, map[string]interface{}{"count": len(fixes), "fixes": sanitizeFixes(fixes)})
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filter, err := s.parseFilter(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(filter.individuals) != 1 {
		s.writeJSONError(w, http.StatusBadRequest, "exactly one 'individual' is required")
		return
	}
	fixes, err := s.store.GetFixes(r.Context(), filter.storeFilter())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, map[string]interface{}{"steps": track.Steps(fixes)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filter, err := s.parseFilter(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	period := track.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = track.PeriodDay
	}
	if !period.Valid() {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid 'period' parameter %q", period))
		return
	}

	version, err := s.store.LatestBatchID(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	key := string(period) + "|" + cacheKey(version, filter.individuals, filter.start, filter.end, filter.season, "")
	if cached, ok := s.cache.get(version, key); ok {
		s.writeJSON(w, cached)
		return
	}

	fixes, err := s.store.GetFixes(r.Context(), filter.storeFilter())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := track.Aggregate(filter.restrict(fixes), period)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := map[string]interface{}{"period": period, "stats": stats}
	s.cache.put(version, key, resp)
	s.writeJSON(w, resp)
}

// homeRangeResult is one individual's estimate converted to the request unit.
type homeRangeResult struct {
	Individual string  `json:"individual"`
	Season     string  `json:"season,omitempty"`
	PointCount int     `json:"point_count"`
	MCPArea    float64 `json:"mcp_area"`
	KDEArea    float64 `json:"kde_area"`
	CoreArea   float64 `json:"core_area"`
	Unit       string  `json:"unit"`
}

func (s *Server) handleHomeRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filter, err := s.parseFilter(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := s.store.LatestBatchID(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	key := "homerange|" + cacheKey(version, filter.individuals, filter.start, filter.end, filter.season, filter.unit)
	if cached, ok := s.cache.get(version, key); ok {
		s.writeJSON(w, cached)
		return
	}

	fixes, err := s.store.GetFixes(r.Context(), filter.storeFilter())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	estimates := homerange.ComputeAll(filter.restrict(fixes), s.rangeOptions(filter.season))

	results := make([]homeRangeResult, len(estimates))
	for i, est := range estimates {
		results[i] = homeRangeResult{
			Individual: est.Individual,
			Season:     est.Season,
			PointCount: est.PointCount,
			MCPArea:    units.ConvertArea(est.MCPAreaKm2, filter.unit),
			KDEArea:    units.ConvertArea(est.KDEAreaKm2, filter.unit),
			CoreArea:   units.ConvertArea(est.CoreAreaKm2, filter.unit),
			Unit:       filter.unit,
		}
	}

	resp := map[string]interface{}{"home_ranges": results}
	s.cache.put(version, key, resp)
	s.writeJSON(w, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filter, err := s.parseFilter(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := s.store.LatestBatchID(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The summary always spans every individual and season, in km2; only
	// the dataset version and date range influence it.
	key := "summary|" + cacheKey(version, nil, filter.start, filter.end, "", "")
	if cached, ok := s.cache.get(version, key); ok {
		s.writeJSON(w, cached)
		return
	}

	fixes, err := s.store.GetFixes(r.Context(), trackdb.FixFilter{Start: filter.start, End: filter.end})
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	defer monitoring.TimeOp("seasonal summary")()
	rows := s.summarize(fixes)

	resp := map[string]interface{}{"unit": units.KM2, "summary": rows}
	s.cache.put(version, key, resp)
	s.writeJSON(w, resp)
}

// summarize fans the per-individual estimates out across goroutines:
// individuals are independent, and KDE over a season of fixes is the
// expensive part.
func (s *Server) summarize(fixes []track.Fix) []summary.IndividualSummary {
	byIndividual := make(map[string][]track.Fix)
	for _, f := range fixes {
		byIndividual[f.Individual] = append(byIndividual[f.Individual], f)
	}

	var mu sync.Mutex
	var overall, seasonal []homerange.Estimate
	var wg sync.WaitGroup
	for _, group := range byIndividual {
		wg.Add(1)
		go func(group []track.Fix) {
			defer wg.Done()

			full := homerange.Compute(group, s.rangeOptions(""))
			perSeason := make([]homerange.Estimate, 0, len(track.CanonicalSeasons))
			for _, season := range track.CanonicalSeasons {
				perSeason = append(perSeason, homerange.Compute(group, s.rangeOptions(season)))
			}

			mu.Lock()
			overall = append(overall, full)
			seasonal = append(seasonal, perSeason...)
			mu.Unlock()
		}(group)
	}
	wg.Wait()

	return summary.Summarize(overall, seasonal)
}

func (s *Server) rangeOptions(season string) homerange.Options {
	return homerange.Options{
		MCPPercent:  s.cfg.GetMCPPercent(),
		KDEPercent:  s.cfg.GetKDEPercent(),
		CorePercent: s.cfg.GetCorePercent(),
		GridSize:    s.cfg.GetKDEGridSize(),
		Season:      season,
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"source_crs":    s.cfg.GetSourceCRS(),
		"timezone":      s.cfg.GetLocation().String(),
		"mcp_percent":   s.cfg.GetMCPPercent(),
		"kde_percent":   s.cfg.GetKDEPercent(),
		"core_percent":  s.cfg.GetCorePercent(),
		"kde_grid_size": s.cfg.GetKDEGridSize(),
		"area_unit":     s.cfg.GetAreaUnit(),
	})
}

// sanitizeFixes replaces NaN lat/lng with nulls so the response stays valid
// JSON.
func sanitizeFixes(fixes []track.Fix) []map[string]interface{} {
	out := make([]map[string]interface{}, len(fixes))
	for i, f := range fixes {
		m := map[string]interface{}{
			"individual":  f.Individual,
			"timestamp":   f.Timestamp,
			"x":           f.X,
			"y":           f.Y,
			"season":      f.Season,
			"season_code": f.SeasonCode,
			"sex":         f.Sex,
			"age":         f.Age,
			"daytime":     f.Daytime,
		}
		if math.IsNaN(f.Lat) || math.IsNaN(f.Lng) {
			m["lat"], m["lng"] = nil, nil
		} else {
			m["lat"], m["lng"] = f.Lat, f.Lng
		}
		out[i] = m
	}
	return out
}

// LoggingMiddleware logs method, path, status and duration for every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("[%d] %s %s %vms",
			lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// individualsParam splits a comma-separated individual list.
func individualsParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
