package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cpidash/internal/core"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// writeJSON serializes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireGet rejects non-GET methods. Returns false when the request
// was already answered.
func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// parseMonthParam reads an optional YYYY-MM query parameter. A missing
// parameter yields the zero date.
func parseMonthParam(r *http.Request, name string) (core.MonthDate, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.MonthDate{}, nil
	}

	date, err := core.ParseMonth(v)
	if err != nil {
		return core.MonthDate{}, fmt.Errorf("invalid %s %q: expected YYYY-MM", name, v)
	}
	return date, nil
}

// requireMonthParam is parseMonthParam for mandatory parameters.
func requireMonthParam(r *http.Request, name string) (core.MonthDate, error) {
	date, err := parseMonthParam(r, name)
	if err != nil {
		return core.MonthDate{}, err
	}
	if date.IsZero() {
		return core.MonthDate{}, fmt.Errorf("missing required parameter %s", name)
	}
	return date, nil
}

// parseCategoriesParam reads the categories parameter, either repeated
// or comma separated. Nil means the caller's default set.
func parseCategoriesParam(r *http.Request) []string {
	var categories []string
	for _, raw := range r.URL.Query()["categories"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}
	return categories
}

// categoryParam reads the category parameter, defaulting to All-items.
func categoryParam(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		return c
	}
	return core.AllItems
}

// parseIntParam reads an optional positive integer parameter.
func parseIntParam(r *http.Request, name string, defaultValue int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive integer", name, v)
	}
	return n, nil
}

// parseFloatParam reads an optional float parameter.
func parseFloatParam(r *http.Request, name string, defaultValue float64) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected a number", name, v)
	}
	return f, nil
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
