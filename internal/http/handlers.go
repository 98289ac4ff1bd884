package http

import (
	"log/slog"
	"net/http"
	"strings"

	"cpidash/internal/analysis"
	"cpidash/internal/core"
	"cpidash/internal/export"
	"cpidash/internal/metrics"
)

// Detection defaults for base effect scanning: a swing of two
// percentage points in the YoY rate while the month itself moved less
// than 0.2 points.
const (
	defaultYoYThreshold = 2.0
	defaultMoMThreshold = 0.2
)

const defaultProjectionMonths = 6

// table fetches the current dataset, answering 503 when neither the
// cache nor a download can produce one.
func (s *Server) table(w http.ResponseWriter, r *http.Request) (metrics.Table, bool) {
	t, err := s.dataset.Table(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Dataset unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return nil, false
	}
	return t, true
}

func orEmpty(t metrics.Table) metrics.Table {
	if t == nil {
		return metrics.Table{}
	}
	return t
}

// overview is the headline card payload for one category.
type overview struct {
	Category string                      `json:"category"`
	Latest   *metrics.LatestRate         `json:"latest,omitempty"`
	Trend    analysis.DirectionResult    `json:"trend_3m"`
	Momentum analysis.AccelerationResult `json:"momentum"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	category := categoryParam(r)
	out := overview{
		Category: category,
		Trend:    analysis.TrendDirection(t, category),
		Momentum: analysis.Acceleration(t, category),
	}
	if latest, found := metrics.GetLatestRate(t, category); found {
		out.Latest = &latest
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecentTrends(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	months, err := parseIntParam(r, "months", 12)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	rows := analysis.RecentTrends(t, months, parseCategoriesParam(r))
	writeJSON(w, http.StatusOK, orEmpty(rows))
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	from, err := parseMonthParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseMonthParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	rows := analysis.HistoricalComparison(t, parseCategoriesParam(r), from, to)
	writeJSON(w, http.StatusOK, orEmpty(rows))
}

// breakdown answers the per-category snapshot for one month, with the
// extremes called out.
type breakdown struct {
	Rows   metrics.Table `json:"rows"`
	Top    metrics.Table `json:"top_inflating"`
	Bottom metrics.Table `json:"bottom_inflating"`
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	date, err := parseMonthParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	top, err := parseIntParam(r, "top", 3)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bottom, err := parseIntParam(r, "bottom", 3)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, breakdown{
		Rows:   orEmpty(analysis.CategoryBreakdown(t, date)),
		Top:    orEmpty(analysis.TopInflating(t, date, top)),
		Bottom: orEmpty(analysis.BottomInflating(t, date, bottom)),
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	from, err := parseMonthParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseMonthParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, orEmpty(analysis.CategoryTrends(t, from, to)))
}

func (s *Server) handleComparePeriods(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	var dates [4]core.MonthDate
	for i, name := range []string{"p1_from", "p1_to", "p2_from", "p2_to"} {
		date, err := requireMonthParam(r, name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dates[i] = date
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	result := analysis.ComparePeriods(t, categoryParam(r), dates[0], dates[1], dates[2], dates[3])
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePercentile(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	date, err := parseMonthParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	if date.IsZero() {
		if max, found := t.MaxDate(); found {
			date = max
		}
	}

	category := categoryParam(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"category":   category,
		"date":       date,
		"percentile": analysis.InflationPercentile(t, category, date),
	})
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	month, err := parseMonthParam(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	if month.IsZero() {
		if max, found := t.MaxDate(); found {
			month = max
		}
	}

	rows := analysis.MonthlySummary(t, month, parseCategoriesParam(r))
	writeJSON(w, http.StatusOK, orEmpty(rows))
}

func (s *Server) handleSummaryStats(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	from, err := parseMonthParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseMonthParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	category := categoryParam(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"stats":    metrics.GetSummaryStats(t, category, from, to),
	})
}

func (s *Server) handleCumulative(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	start, err := parseMonthParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	rows := metrics.AddCumulativeInflation(t, categoryParam(r), start)
	writeJSON(w, http.StatusOK, orEmpty(rows))
}

func (s *Server) handleTrendDirection(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	lookback, err := parseIntParam(r, "lookback", 6)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	category := categoryParam(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"result":   analysis.DetectTrend(t, category, lookback),
	})
}

func (s *Server) handleVolatility(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	months, err := parseIntParam(r, "months", 12)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	category := categoryParam(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"months":   months,
		"result":   analysis.Volatility(t, category, months),
	})
}

func (s *Server) handleBaseEffects(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	yoyThreshold, err := parseFloatParam(r, "yoy_threshold", defaultYoYThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	momThreshold, err := parseFloatParam(r, "mom_threshold", defaultMoMThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		t = t.FilterCategory(category)
	}

	rows := metrics.DetectBaseEffectPeriods(t, yoyThreshold, momThreshold)
	writeJSON(w, http.StatusOK, orEmpty(rows))
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	months, err := parseIntParam(r, "months_ahead", defaultProjectionMonths)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	assumption := metrics.AssumptionCurrent
	if v := strings.TrimSpace(r.URL.Query().Get("assumption")); v != "" {
		assumption = metrics.MoMAssumption(v)
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	projections, err := metrics.ProjectFutureYoY(t, categoryParam(r), months, assumption)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if projections == nil {
		projections = []metrics.Projection{}
	}
	writeJSON(w, http.StatusOK, projections)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	from, err := parseMonthParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseMonthParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	if categories := parseCategoriesParam(r); len(categories) > 0 {
		t = t.FilterCategories(categories)
	}
	t = t.FilterDateRange(from, to)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="cpi_metrics.csv"`)
	if err := export.WriteCSV(w, t); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	valueType, err := export.ParseValueType(r.URL.Query().Get("value"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	months, err := parseIntParam(r, "months", 12)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, ok := s.table(w, r)
	if !ok {
		return
	}

	wide := export.Pivot(t, valueType, months)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="cpi_table.csv"`)
		if err := export.WriteWideCSV(w, wide); err != nil {
			slog.ErrorContext(r.Context(), "Wide CSV export failed", "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, wide)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	t, err := s.dataset.Refresh(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"observations": len(t),
		"categories":   len(t.Categories()),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		info, err := s.dataset.CacheInfo(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Cache info failed", "error", err)
			writeError(w, http.StatusInternalServerError, "cache info unavailable")
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodDelete:
		if err := s.dataset.ClearCache(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Cache clear failed", "error", err)
			writeError(w, http.StatusInternalServerError, "cache clear failed")
			return
		}
		s.responseCache.Clear()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
