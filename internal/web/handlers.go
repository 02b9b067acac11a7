package web

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/foldsat/internal/errors"
	"github.com/hpungsan/foldsat/internal/ops"
	"github.com/hpungsan/foldsat/internal/report"
)

// Handlers contains HTTP route handlers for the run browser.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// runsInput builds a run filter from query parameters.
func runsInput(r *http.Request) ops.RunsInput {
	q := r.URL.Query()
	input := ops.RunsInput{
		Sequence: q.Get("sequence"),
		Dims:     parseIntParam(r, "dims", 0),
		Solver:   q.Get("solver"),
		Policy:   q.Get("policy"),
		Limit:    parseIntParam(r, "limit", 0),
	}
	if v := q.Get("variant"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			input.Variant = &n
		}
	}
	return input
}

// HandleList handles GET /runs.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := runsInput(r)
	result, err := ops.ListRuns(h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: h.renderer.page("Runs", "runs"),
		Items:    result.Items,
		Limit:    result.Limit,
		Sequence: input.Sequence,
		Dims:     input.Dims,
		Solver:   input.Solver,
		Policy:   input.Policy,
	})
}

// HandleDetail handles GET /runs/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("id is required"))
		return
	}

	run, err := ops.GetRun(h.env, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: h.renderer.page("Run "+run.ID, "runs"),
		Run:      run,
	})
}

// HandleReport handles GET /runs/report, the Markdown report rendered to HTML.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Report(h.env, ops.ReportInput{
		Filter: runsInput(r),
		Title:  r.URL.Query().Get("title"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	body, err := report.HTML(out.Content)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}

	h.renderer.renderPage(w, "report", ReportPageData{
		PageData: h.renderer.page("Report", "report"),
		Runs:     out.Runs,
		// goldmark escapes raw HTML unless WithUnsafe is set
		Body: template.HTML(body),
	})
}

// HandleAPIList handles GET /api/runs.
func (h *Handlers) HandleAPIList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListRuns(h.env, runsInput(r))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIDetail handles GET /api/runs/{id}.
func (h *Handlers) HandleAPIDetail(w http.ResponseWriter, r *http.Request) {
	run, err := ops.GetRun(h.env, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, run)
}

// parseIntParam parses an integer query parameter, falling back on bad input.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
