package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/autoride/internal/auth"
	"github.com/example/autoride/internal/drivers"
	"github.com/example/autoride/internal/fare"
	"github.com/example/autoride/internal/ledger"
	"github.com/example/autoride/internal/matcher"
	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/realtime"
	"github.com/example/autoride/internal/tracking"
	"github.com/example/autoride/internal/zones"
)

const maxBodyBytes = 1 << 20

// Deps are the components the HTTP surface routes into.
type Deps struct {
	Zones   *zones.Catalog
	Fares   *fare.Engine
	Rides   *ledger.Ledger
	Drivers *drivers.Directory
	Matcher *matcher.Service
	Tracker *tracking.Tracker
	Gateway *realtime.Gateway
	Auth    *auth.Verifier
}

type Server struct {
	Deps
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Deps: deps, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)

	s.mux.HandleFunc("/zones", s.handleListZones).Methods("GET")
	s.mux.HandleFunc("/zones/{id}", s.handleGetZone).Methods("GET")
	s.mux.HandleFunc("/fares/quote", s.handleQuote).Methods("GET")

	// static paths before /rides/{id}
	s.mux.HandleFunc("/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/rides", s.handleListRides).Methods("GET")
	s.mux.HandleFunc("/rides/pending", s.handlePendingRides).Methods("GET")
	s.mux.HandleFunc("/rides/recent", s.requireDriver(s.handleRecentRides)).Methods("GET")
	s.mux.HandleFunc("/rides/nearby-drivers", s.handleNearbyDrivers).Methods("GET")
	s.mux.HandleFunc("/rides/{id}", s.handleGetRide).Methods("GET")
	s.mux.HandleFunc("/rides/{id}/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/decline", s.handleDecline).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/driver-arrived", s.handleDriverArrived).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/start", s.handleStart).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/complete", s.handleComplete).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/cancel", s.handleCancel).Methods("POST")
	s.mux.HandleFunc("/rides/{id}/rate", s.handleRate).Methods("POST")

	s.mux.HandleFunc("/drivers/me", s.requireDriver(s.handleMe)).Methods("GET")
	s.mux.HandleFunc("/drivers/status", s.requireDriver(s.handleDriverStatus)).Methods("POST")
	s.mux.HandleFunc("/drivers/stats", s.requireDriver(s.handleDriverStats)).Methods("GET")
	s.mux.HandleFunc("/drivers/rides/nearby", s.requireDriver(s.handleNearbyRides)).Methods("GET")
	s.mux.HandleFunc("/drivers/location", s.requireDriver(s.handleReportLocation)).Methods("POST")
	s.mux.HandleFunc("/drivers/location/driver/{driverId}", s.handleDriverLocation).Methods("GET")
	s.mux.HandleFunc("/drivers/location/{zoneId}", s.handleZoneDrivers).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Zones.List())
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	z, err := s.Zones.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := s.Fares.Quote(q.Get("pickup"), q.Get("drop"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain error kinds to HTTP statuses. Anything unrecognised
// is logged and reported as a 500 without leaking the cause.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := models.ErrorCode(err)
	status := http.StatusBadRequest
	msg := err.Error()
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, realtime.ErrChannelFull):
		code = "channel_full"
	case code == "internal":
		status, msg = http.StatusInternalServerError, "internal error"
		s.logger.Error("request failed", "route", routeTemplate(r), "request_id", requestID(r.Context()), "error", err)
	}
	writeJSON(w, status, errorBody{Success: false, Error: msg, Code: code})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed body: %v", models.ErrInvalidInput, err)
	}
	return nil
}

func newID() string { return uuid.NewString() }
