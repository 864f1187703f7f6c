package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/caretrack/internal/domain/types"
)

// CasesHandler handles case listing and analysis requests.
type CasesHandler struct {
	deps  Analyzer
	clock func() time.Time
	errs  errorWriter
}

// NewCasesHandler creates a new cases handler.
func NewCasesHandler(deps Analyzer, clock func() time.Time, errs errorWriter) *CasesHandler {
	return &CasesHandler{deps: deps, clock: clock, errs: errs}
}

type casesResponse struct {
	Cases []string `json:"cases"`
}

// HandleListCases handles GET /cases requests.
func (h *CasesHandler) HandleListCases(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_cases"
	cases, err := h.deps.Cases(r.Context())
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	if cases == nil {
		cases = []string{}
	}
	writeJSON(w, http.StatusOK, casesResponse{Cases: cases})
}

// HandleSummary handles GET /cases/{case}/summary requests.
func (h *CasesHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "api.summary", h.deps.Summary)
}

// HandleStage handles GET /cases/{case}/stage requests.
func (h *CasesHandler) HandleStage(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "api.stage", h.deps.Stage)
}

// HandleTrends handles GET /cases/{case}/trends requests. Trends cover the
// whole history, so window and now are ignored.
func (h *CasesHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	const op = "api.trends"
	res, err := h.deps.Trends(r.Context(), r.PathValue("case"))
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleLinks handles GET /cases/{case}/links requests. The window is the
// distance in days on either side of each scale.
func (h *CasesHandler) HandleLinks(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "api.links", h.deps.Links)
}

// HandleSymptoms handles GET /cases/{case}/symptoms requests.
func (h *CasesHandler) HandleSymptoms(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "api.symptoms", h.deps.Symptoms)
}

// HandleReport handles GET /cases/{case}/report requests.
func (h *CasesHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "api.report", h.deps.Report)
}

func serve[T any](h *CasesHandler, w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string, types.Query) (T, error)) {
	q, err := h.query(r)
	if err != nil {
		h.errs.write(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := fn(r.Context(), r.PathValue("case"), q)
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// query parses the window and now parameters. now accepts RFC3339 or a
// plain date, which is read as midnight UTC.
func (h *CasesHandler) query(r *http.Request) (types.Query, error) {
	var q types.Query
	values := r.URL.Query()

	if raw := strings.TrimSpace(values.Get("window")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return q, fmt.Errorf("invalid window %q; must be a positive number of days", raw)
		}
		q.WindowDays = days
	}

	q.Now = h.clock()
	if raw := strings.TrimSpace(values.Get("now")); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.Now = t
		} else if t, err := time.Parse(time.DateOnly, raw); err == nil {
			q.Now = t
		} else {
			return q, fmt.Errorf("invalid now %q; must be RFC3339 or YYYY-MM-DD", raw)
		}
	}
	return q, nil
}
