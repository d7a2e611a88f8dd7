package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/transit-cache/pkg/client"
	"github.com/Sternrassler/transit-cache/pkg/explore"
	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/metrics"
	"github.com/Sternrassler/transit-cache/pkg/station"
	"github.com/Sternrassler/transit-cache/pkg/transit"
)

var errMissingType = errors.New("type is required")

type app struct {
	db      *sql.DB
	bikes   *station.Provider[transit.BikeStation]
	subways *station.Provider[transit.SubwayStation]
	tracker *explore.Tracker
	logger  zerolog.Logger
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", a.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /bikes/{id}", stationHandler(a.bikes, a.logger))
	mux.HandleFunc("GET /bikes", stationsHandler(a.bikes, a.logger))
	mux.HandleFunc("GET /subways/{id}", stationHandler(a.subways, a.logger))
	mux.HandleFunc("GET /subways", stationsHandler(a.subways, a.logger))

	mux.HandleFunc("GET /explored", a.isExploredHandler)
	mux.HandleFunc("POST /explored", a.markExploredHandler)

	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (a *app) readyHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.db.PingContext(r.Context()); err != nil {
		a.logger.Error().Err(err).Msg("Store not ready")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// stationHandler serves one station. ?fresh=1 applies the provider's
// shorter freshness window.
func stationHandler[T station.Station](p *station.Provider[T], logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var (
			s   T
			err error
		)
		if fresh := r.URL.Query().Get("fresh"); fresh == "1" || fresh == "true" {
			s, err = p.GetFreshStation(r.Context(), id)
		} else {
			s, err = p.GetStation(r.Context(), id)
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func stationsHandler[T station.Station](p *station.Provider[T], logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bbox, err := geo.ParseBBox(r.URL.Query().Get("bbox"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		stations, err := p.GetStations(r.Context(), bbox)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if stations == nil {
			stations = []T{}
		}
		writeJSON(w, http.StatusOK, stations)
	}
}

type exploredResponse struct {
	Type     string `json:"type"`
	BBox     string `json:"bbox"`
	Explored bool   `json:"explored"`
	TTL      string `json:"ttl"`
}

func (a *app) isExploredHandler(w http.ResponseWriter, r *http.Request) {
	typ, bbox, err := exploreParams(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	explored, err := a.tracker.IsExplored(r.Context(), bbox, typ)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, exploredResponse{
		Type:     typ,
		BBox:     bbox.String(),
		Explored: explored,
		TTL:      a.tracker.TTL().String(),
	})
}

func (a *app) markExploredHandler(w http.ResponseWriter, r *http.Request) {
	typ, bbox, err := exploreParams(r)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	if err := a.tracker.MarkExplored(r.Context(), bbox, typ); err != nil {
		writeError(w, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func exploreParams(r *http.Request) (string, geo.BBox, error) {
	typ := r.URL.Query().Get("type")
	if typ == "" {
		return "", geo.BBox{}, errMissingType
	}
	bbox, err := geo.ParseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		return "", geo.BBox{}, err
	}
	return typ, bbox, nil
}

// statusFor maps an operation error to the HTTP status returned to callers.
func statusFor(err error) int {
	var fe *client.FetchError
	switch {
	case errors.Is(err, geo.ErrInvalidBBox), errors.Is(err, errMissingType):
		return http.StatusBadRequest
	case errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.Is(err, client.ErrContextCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, client.ErrFetch), errors.Is(err, client.ErrRetryExhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
