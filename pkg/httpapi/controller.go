package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgledger/pkg/application"
	"github.com/iota-uz/orgledger/pkg/composables"
	"github.com/iota-uz/orgledger/pkg/eventstore"
	"github.com/iota-uz/orgledger/pkg/jobqueue"
)

// TenantHeader names the tenant the request reads from. The API is
// read-only: writes only ever happen through the event store.
const TenantHeader = "X-Tenant-ID"

type Controller struct {
	app     *application.Application
	queries *jobqueue.Queries
	log     *logrus.Logger
}

func NewController(app *application.Application) *Controller {
	return &Controller{
		app:     app,
		queries: jobqueue.NewQueries(),
		log:     app.Logger(),
	}
}

func (c *Controller) Register(r *mux.Router) {
	r.HandleFunc("/healthz", c.healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(c.tenantMiddleware)
	api.HandleFunc("/streams/{id}/events", c.streamEvents).Methods(http.MethodGet)
	api.HandleFunc("/stream-types/{type}/events", c.streamTypeEvents).Methods(http.MethodGet)
	api.HandleFunc("/correlations/{id}/events", c.correlationEvents).Methods(http.MethodGet)
	api.HandleFunc("/jobs", c.listJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", c.getJob).Methods(http.MethodGet)
}

// tenantMiddleware binds the pool and the request's tenant into the context
// the same way background workers do, so repository code below is identical
// for both callers.
func (c *Controller) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := uuid.Parse(r.Header.Get(TenantHeader))
		if err != nil || tenantID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "MISSING_TENANT", "valid "+TenantHeader+" header is required")
			return
		}
		ctx := composables.WithPool(r.Context(), c.app.Pool())
		ctx = composables.WithTenantID(ctx, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *Controller) healthz(w http.ResponseWriter, r *http.Request) {
	if err := c.app.Pool().Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database ping failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Controller) streamEvents(w http.ResponseWriter, r *http.Request) {
	events, err := c.app.Store().ListByStream(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (c *Controller) streamTypeEvents(w http.ResponseWriter, r *http.Request) {
	st := eventstore.StreamType(mux.Vars(r)["type"])
	if _, _, err := c.app.Registry().Route(st); err != nil {
		writeError(w, http.StatusNotFound, eventstore.ErrUnroutedStreamType.Code, err.Error())
		return
	}
	events, err := c.app.Store().ListByStreamType(r.Context(), st)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (c *Controller) correlationEvents(w http.ResponseWriter, r *http.Request) {
	events, err := c.app.Store().ListByCorrelation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (c *Controller) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)

	var (
		jobs []jobqueue.Job
		err  error
	)
	if stale := r.URL.Query().Get("stale_after"); stale != "" {
		olderThan, parseErr := time.ParseDuration(stale)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DURATION", "stale_after must be a duration, e.g. 5m")
			return
		}
		jobs, err = c.queries.ListStale(r.Context(), olderThan, limit)
	} else if status := r.URL.Query().Get("status"); status != "" {
		jobs, err = c.queries.ListByStatus(r.Context(), jobqueue.Status(status), limit)
	} else {
		jobs, err = c.queries.ListPending(r.Context(), limit)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (c *Controller) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := c.queries.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "no such job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
