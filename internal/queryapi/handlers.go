package queryapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yavyy/audience-query-system/internal/authmw"
	"github.com/yavyy/audience-query-system/internal/queries"
)

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in queries.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	q, err := a.svc.Submit(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("aqs.query.id", q.ID),
		attribute.String("aqs.query.priority", string(q.Priority)),
	)

	a.writeJSON(w, http.StatusCreated, q)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	f, opts := listParams(r)

	// Agents only see their own queue.
	caller := authmw.CallerFromContext(r.Context())
	if caller.Role() == queries.RoleAgent {
		f.AssignedTo = caller.ID()
	}

	page, err := a.svc.List(r.Context(), f, opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, page)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("aqs.query.id", id))

	q, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	caller := authmw.CallerFromContext(r.Context())
	if caller.Role() == queries.RoleAgent && q.AssignedTo != caller.ID() {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	a.writeJSON(w, http.StatusOK, q)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p queries.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	q, err := a.svc.UpdateFields(r.Context(), id, p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, q)
}

func (a *API) handleAssign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	caller := authmw.CallerFromContext(r.Context())
	q, err := a.svc.Assign(r.Context(), id, body.AgentID, caller.ID())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, q)
}

func (a *API) handleRespond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	caller := authmw.CallerFromContext(r.Context())
	q, err := a.svc.Respond(r.Context(), id, body.Message, caller.ID())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, q)
}

func (a *API) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	caller := authmw.CallerFromContext(r.Context())
	q, err := a.svc.Annotate(r.Context(), id, body.Note, caller.ID())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, q)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.svc.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	q, err := a.svc.Reclassify(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, q)
}

func (a *API) handleSuggestResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	draft, err := a.svc.SuggestResponse(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{
		"suggested_response": draft,
	})
}

func (a *API) handleBatchAnalyze(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if len(body.IDs) == 0 {
		http.Error(w, `{"error":"ids is required"}`, http.StatusBadRequest)
		return
	}

	items, err := a.svc.BatchAnalyze(r.Context(), body.IDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"results": items,
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.DashboardStats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, st)
}

// listParams extracts filter and pagination settings from the URL query.
// Unknown or malformed values fall back to defaults rather than erroring.
func listParams(r *http.Request) (queries.Filter, queries.ListOptions) {
	v := r.URL.Query()

	f := queries.Filter{
		Status:     queries.Status(v.Get("status")),
		Priority:   queries.Priority(v.Get("priority")),
		Category:   queries.Category(v.Get("category")),
		Channel:    queries.Channel(v.Get("channel")),
		AssignedTo: v.Get("assigned_to"),
		Search:     v.Get("search"),
	}

	opts := queries.ListOptions{
		SortBy:    v.Get("sort_by"),
		Ascending: v.Get("order") == "asc",
	}
	if n, err := strconv.Atoi(v.Get("page")); err == nil {
		opts.Page = n
	}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil {
		opts.Limit = n
	}

	return f, opts.Normalize()
}
