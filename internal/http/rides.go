package httpapi

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/example/autoride/internal/auth"
	"github.com/example/autoride/internal/ledger"
	"github.com/example/autoride/internal/models"
)

const recentRidesLimit = 10

type rideResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Ride    models.Ride `json:"ride"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ride, err := s.Rides.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.Rides.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RidesForDriver(rides))
}

func (s *Server) handlePendingRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.Matcher.PendingRidesInZone(r.Context(), r.URL.Query().Get("zoneId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RidesForDriver(rides))
}

// handleRecentRides lists the newest rides first.
func (s *Server) handleRecentRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.Rides.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sort.SliceStable(rides, func(i, j int) bool { return rides[i].CreatedAt.After(rides[j].CreatedAt) })
	if len(rides) > recentRidesLimit {
		rides = rides[:recentRidesLimit]
	}
	writeJSON(w, http.StatusOK, models.RidesForDriver(rides))
}

func (s *Server) handleNearbyDrivers(w http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zoneId")
	if !s.Zones.Has(zoneID) {
		s.writeError(w, r, models.ErrInvalidZone)
		return
	}
	locs, err := s.Matcher.AvailableDriversFor(r.Context(), zoneID, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Rides.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

// handleAccept takes the driver from a valid bearer token when one is sent,
// otherwise from the body.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var a ledger.Assignment
	if err := decode(r, &a); err != nil {
		s.writeError(w, r, err)
		return
	}
	if id := s.optionalDriver(r); id != "" {
		a.DriverID = id
	}
	s.respondDriver(w, r, "")(s.Rides.Accept(r.Context(), mux.Vars(r)["id"], a))
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DriverID string `json:"driverId"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if id := s.optionalDriver(r); id != "" {
		body.DriverID = id
	}
	s.respondDriver(w, r, "Ride declined")(s.Rides.Decline(r.Context(), mux.Vars(r)["id"], body.DriverID))
}

func (s *Server) handleDriverArrived(w http.ResponseWriter, r *http.Request) {
	s.respondDriver(w, r, "")(s.Rides.DriverArrived(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP string `json:"otp"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondDriver(w, r, "")(s.Rides.Start(r.Context(), mux.Vars(r)["id"], body.OTP))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.respondDriver(w, r, "")(s.Rides.Complete(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondRide(w, r, "")(s.Rides.Cancel(r.Context(), mux.Vars(r)["id"], body.Reason))
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondRide(w, r, "")(s.Rides.Rate(r.Context(), mux.Vars(r)["id"], body.Rating, body.Feedback))
}

// respondRide writes the {success, ride} envelope used by every lifecycle
// operation.
func (s *Server) respondRide(w http.ResponseWriter, r *http.Request, msg string) func(models.Ride, error) {
	return func(ride models.Ride, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rideResponse{Success: true, Message: msg, Ride: ride})
	}
}

// respondDriver is respondRide for operations performed by the driver, whose
// view of a ride never carries the otp.
func (s *Server) respondDriver(w http.ResponseWriter, r *http.Request, msg string) func(models.Ride, error) {
	respond := s.respondRide(w, r, msg)
	return func(ride models.Ride, err error) { respond(ride.ForDriver(), err) }
}

func driverFrom(r *http.Request) string {
	id, _ := auth.DriverFrom(r.Context())
	return id
}
