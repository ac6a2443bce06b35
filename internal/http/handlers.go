package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendview/internal/chart"
	"spendview/internal/core"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type spendResponse struct {
	GroupBy string          `json:"group_by"`
	Rows    []core.SpendRow `json:"rows"`
	Message string          `json:"message,omitempty"`
}

type statementsResponse struct {
	AsOf       string               `json:"as_of"`
	Statements []core.CardStatement `json:"statements"`
	Message    string               `json:"message,omitempty"`
}

const noDataMessage = "no data for this period"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP statuses without leaking
// backend detail to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidFilter), errors.Is(err, core.ErrInvalidGroupBy):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		slog.ErrorContext(r.Context(), "Unhandled service error", "error", err, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, expiresAt, err := s.authenticator.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case errors.Is(err, core.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// parseFilter reads the optional year/month/method_id/source_id query
// parameters. Values are bound as SQL parameters downstream, never
// interpolated.
func parseFilter(r *http.Request) (core.Filter, error) {
	var f core.Filter
	q := r.URL.Query()

	parse := func(name string, dst *int) error {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.ErrInvalidFilter
		}
		*dst = n
		return nil
	}

	var methodID, sourceID int
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"year", &f.Year},
		{"month", &f.Month},
		{"method_id", &methodID},
		{"source_id", &sourceID},
	} {
		if err := parse(p.name, p.dst); err != nil {
			return core.Filter{}, err
		}
	}
	f.MethodID = int64(methodID)
	f.SourceID = int64(sourceID)
	return f, f.Validate()
}

func (s *Server) aggregate(w http.ResponseWriter, r *http.Request, g core.GroupBy) ([]core.SpendRow, bool) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	rows, err := s.analytics.Aggregate(r.Context(), f, g)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return rows, true
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	groupBy := strings.TrimSpace(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		groupBy = string(core.GroupByMonthOfYear)
	}
	g, err := core.ParseGroupBy(groupBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, ok := s.aggregate(w, r, g)
	if !ok {
		return
	}

	resp := spendResponse{GroupBy: string(g), Rows: rows}
	if len(rows) == 0 {
		resp.Rows = []core.SpendRow{}
		resp.Message = noDataMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if v := strings.TrimSpace(r.URL.Query().Get("as_of")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = d.Time
	}

	stmts, err := s.analytics.CurrentStatements(r.Context(), asOf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := statementsResponse{AsOf: asOf.Format("2006-01-02"), Statements: stmts}
	if len(stmts) == 0 {
		resp.Statements = []core.CardStatement{}
		resp.Message = noDataMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.reference.ListMethods(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.reference.ListSources(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.reference.ListCards(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) serveChart(w http.ResponseWriter, r *http.Request, g core.GroupBy, render func([]core.SpendRow) ([]byte, error)) {
	rows, ok := s.aggregate(w, r, g)
	if !ok {
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, noDataMessage)
		return
	}
	png, err := render(rows)
	if err != nil {
		slog.ErrorContext(r.Context(), "Chart render failed", "error", err, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "chart render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, core.GroupByMonthOfYear, chart.RenderMonthlyBars)
}

func (s *Server) handleDailyChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, core.GroupByDayOfMonth, chart.RenderDailyLine)
}

func (s *Server) handleMethodsChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, core.GroupByMethod, func(rows []core.SpendRow) ([]byte, error) {
		return chart.RenderBreakdownPie("Spend by Method", rows)
	})
}

func (s *Server) handleSourcesChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, core.GroupBySource, func(rows []core.SpendRow) ([]byte, error) {
		return chart.RenderBreakdownPie("Spend by Source", rows)
	})
}
