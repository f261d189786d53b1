package application

import (
	"compress/flate"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/niper/niper-map/internal/pkg/application/regions"
	"github.com/niper/niper-map/internal/pkg/application/services"
	"github.com/niper/niper-map/internal/pkg/domain"
	"github.com/niper/niper-map/internal/pkg/infrastructure/metrics"
)

//RequestRouter wraps the chi router serving the region API
type RequestRouter struct {
	impl *chi.Mux
}

func (router *RequestRouter) addRegionHandlers(api *regionAPI) {
	router.Get("/api/regions", api.listRegions)
	router.Post("/api/regions", api.createRegion)
	router.Delete("/api/regions", api.clearRegions)
	router.Get("/api/regions/export", api.exportRegions)
	router.Get("/api/regions/{id}", api.retrieveRegion)
	router.Get("/api/regions/{id}/center", api.regionCenter)
	router.Delete("/api/regions/{id}", api.removeRegion)
	router.Get("/api/map/center", api.mapCenter)
}

func (router *RequestRouter) addProbeHandlers() {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.impl.Method(http.MethodGet, "/metrics", metrics.Handler())
}

//Get accepts a pattern that should be routed to the handlerFn on a GET request
func (router *RequestRouter) Get(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Get(pattern, handlerFn)
}

//Post accepts a pattern that should be routed to the handlerFn on a POST request
func (router *RequestRouter) Post(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Post(pattern, handlerFn)
}

//Delete accepts a pattern that should be routed to the handlerFn on a DELETE request
func (router *RequestRouter) Delete(pattern string, handlerFn http.HandlerFunc) {
	router.impl.Delete(pattern, handlerFn)
}

//ServeHTTP lets the router be used as an http.Handler
func (router *RequestRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.impl.ServeHTTP(w, r)
}

func newRequestRouter(log zerolog.Logger) *RequestRouter {
	router := &RequestRouter{impl: chi.NewRouter()}

	router.impl.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	compressor := middleware.NewCompressor(flate.DefaultCompression, "application/json")
	router.impl.Use(compressor.Handler)
	router.impl.Use(httplog.RequestLogger(log))
	router.impl.Use(middleware.Recoverer)
	router.impl.Use(metrics.Middleware)

	return router
}

//NewRouter creates the router for the region API and probes
func NewRouter(store *regions.Store, events *RegionEvents, center services.MapCenterService, log zerolog.Logger) *RequestRouter {
	router := newRequestRouter(log)

	router.addRegionHandlers(&regionAPI{store: store, events: events, center: center, log: log})
	router.addProbeHandlers()

	metrics.RegionsStored.Set(float64(len(store.Regions())))

	return router
}

//CreateRouterAndStartServing sets up the router and starts serving incoming requests
func CreateRouterAndStartServing(store *regions.Store, events *RegionEvents, center services.MapCenterService, port int, log zerolog.Logger) error {
	router := NewRouter(store, events, center, log)

	log.Info().Msgf("starting niper-map on port %d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), router)
}

//MaxRequestBodySize bounds the size of a create request
const MaxRequestBodySize int64 = 1 << 20

type regionAPI struct {
	store  *regions.Store
	events *RegionEvents
	center services.MapCenterService
	log    zerolog.Logger
}

type createRegionRequest struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Paths       []domain.Point `json:"paths"`
}

type regionSelection struct {
	Region domain.Region `json:"region"`
	Center domain.Point  `json:"center"`
}

func (api *regionAPI) listRegions(w http.ResponseWriter, r *http.Request) {
	matches := regions.FilterByName(api.store.Regions(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, nonNil(matches))
}

func (api *regionAPI) createRegion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	req := createRegionRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}

		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to decode request body: %w", err))
		return
	}

	region, count, err := api.store.Create(r.Context(), req.Name, req.Description, req.Paths)
	metrics.Mutation("create", err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	metrics.RegionsStored.Set(float64(count))
	api.events.Created(region, count)

	writeJSON(w, http.StatusCreated, region)
}

func (api *regionAPI) retrieveRegion(w http.ResponseWriter, r *http.Request) {
	region, ok := api.findRegion(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, regionSelection{Region: region, Center: regions.CenterOf(region.Paths)})
}

func (api *regionAPI) regionCenter(w http.ResponseWriter, r *http.Request) {
	region, ok := api.findRegion(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, regions.CenterOf(region.Paths))
}

func (api *regionAPI) removeRegion(w http.ResponseWriter, r *http.Request) {
	id, err := regionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	remaining, removed, err := api.store.Remove(r.Context(), id)
	if err != nil {
		metrics.Mutation("remove", err)
		writeError(w, statusFor(err), err)
		return
	}

	metrics.RegionsStored.Set(float64(len(remaining)))

	if removed {
		metrics.Mutation("remove", nil)
		api.events.Removed(id, len(remaining))
	} else {
		metrics.MutationNoop("remove")
	}

	writeJSON(w, http.StatusOK, nonNil(remaining))
}

func (api *regionAPI) clearRegions(w http.ResponseWriter, r *http.Request) {
	cleared, err := api.store.ClearAll(r.Context())
	metrics.Mutation("clear", err)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	metrics.RegionsStored.Set(0)
	api.events.Cleared()

	writeJSON(w, http.StatusOK, nonNil(cleared))
}

func (api *regionAPI) exportRegions(w http.ResponseWriter, r *http.Request) {
	b, err := api.store.Export(r.Context())
	if errors.Is(err, regions.ErrNoDocument) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.Header().Add("Content-Disposition", `attachment; filename="niper-mapped-areas.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (api *regionAPI) mapCenter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.center.Center())
}

func (api *regionAPI) findRegion(w http.ResponseWriter, r *http.Request) (domain.Region, bool) {
	id, err := regionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return domain.Region{}, false
	}

	region, err := api.store.Find(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return domain.Region{}, false
	}

	return region, true
}

func regionID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid region id %q", raw)
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrTooFewPoints),
		errors.Is(err, domain.ErrInvalidPoint):
		return http.StatusBadRequest
	case errors.Is(err, regions.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func nonNil(list []domain.Region) []domain.Region {
	if list == nil {
		return []domain.Region{}
	}
	return list
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, err error) {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
