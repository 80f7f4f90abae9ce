// Package queryapi exposes the triage engine over HTTP.
package queryapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/yavyy/audience-query-system/internal/authmw"
	"github.com/yavyy/audience-query-system/internal/queries"
)

// QueryService defines the business operations queryapi needs.
type QueryService interface {
	Submit(ctx context.Context, in queries.SubmitInput) (*queries.Query, error)
	Get(ctx context.Context, id string) (*queries.Query, error)
	List(ctx context.Context, f queries.Filter, opts queries.ListOptions) (*queries.Page, error)
	Reclassify(ctx context.Context, id string) (*queries.Query, error)
	UpdateFields(ctx context.Context, id string, p queries.Patch) (*queries.Query, error)
	Assign(ctx context.Context, id, agentID, byAgentID string) (*queries.Query, error)
	Respond(ctx context.Context, id, message, byAgentID string) (*queries.Query, error)
	Annotate(ctx context.Context, id, note, byAgentID string) (*queries.Query, error)
	Delete(ctx context.Context, id string) error
	SuggestResponse(ctx context.Context, id string) (string, error)
	BatchAnalyze(ctx context.Context, ids []string) ([]queries.BatchItem, error)
	DashboardStats(ctx context.Context) (*queries.Stats, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	svc      QueryService
	agents   queries.AgentStore
	apiToken string
	events   http.HandlerFunc
}

// New creates a new API handler. events is the live event stream endpoint
// and may be nil.
func New(logger log.Logger, svc QueryService, agents queries.AgentStore, apiToken string, events http.HandlerFunc) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("query service is required"))
	}
	if agents == nil {
		panic(xerrors.New("agent store is required"))
	}
	return &API{
		logger:   logger,
		svc:      svc,
		agents:   agents,
		apiToken: apiToken,
		events:   events,
	}
}

// RegisterRoutes attaches API endpoints to the router. Submission is open;
// everything else requires the API token and a resolvable agent identity.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/queries", a.handleSubmit)

		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerToken(a.apiToken))
			r.Use(authmw.ResolveCaller(a.agents))

			r.Get("/queries", a.handleList)
			r.Get("/queries/stats/dashboard", a.handleStats)
			r.Post("/queries/batch-analyze", a.handleBatchAnalyze)

			r.Get("/queries/{id}", a.handleGet)
			r.Put("/queries/{id}", a.handleUpdate)
			r.Post("/queries/{id}/respond", a.handleRespond)
			r.Post("/queries/{id}/notes", a.handleAnnotate)
			r.Post("/queries/{id}/analyze", a.handleAnalyze)
			r.Get("/queries/{id}/suggest-response", a.handleSuggestResponse)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole(queries.RoleManager, queries.RoleAdmin))
				r.Post("/queries/{id}/assign", a.handleAssign)
			})

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole(queries.RoleAdmin))
				r.Delete("/queries/{id}", a.handleDelete)
			})

			if a.events != nil {
				r.Get("/events", a.events)
			}
		})
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognized
// is a 500 with the detail kept out of the response body.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *queries.ValidationError
	if errors.As(err, &verr) {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid request",
			"fields": verr.Fields,
		})
		return
	}

	var nferr *queries.NotFoundError
	if errors.As(err, &nferr) {
		a.writeJSON(w, http.StatusNotFound, map[string]any{
			"error": nferr.Error(),
		})
		return
	}

	a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
