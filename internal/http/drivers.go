package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/autoride/internal/models"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	drv, err := s.Drivers.Get(r.Context(), driverFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drv)
}

func (s *Server) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.DriverStatus `json:"status"`
		ZoneID string              `json:"zoneId"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	drv, err := s.Drivers.UpdateStatus(r.Context(), driverFrom(r), body.Status, body.ZoneID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "driver": drv})
}

type statsResponse struct {
	TotalEarnings  int     `json:"totalEarnings"`
	TodayEarnings  int     `json:"todayEarnings"`
	TotalRides     int     `json:"totalRides"`
	CompletedRides int     `json:"completedRides"`
	Rating         float64 `json:"rating"`
}

func (s *Server) handleDriverStats(w http.ResponseWriter, r *http.Request) {
	drv, err := s.Drivers.Get(r.Context(), driverFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.Rides.DriverStats(r.Context(), drv.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalEarnings:  st.TotalEarnings,
		TodayEarnings:  st.TodayEarnings,
		TotalRides:     drv.TotalRides,
		CompletedRides: st.CompletedRides,
		Rating:         drv.Rating,
	})
}

func (s *Server) handleNearbyRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.Matcher.PendingRidesFor(r.Context(), driverFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RidesForDriver(rides))
}

func (s *Server) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lat    float64 `json:"lat"`
		Lng    float64 `json:"lng"`
		RideID string  `json:"rideId"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.Tracker.Report(r.Context(), driverFrom(r), body.Lat, body.Lng, body.RideID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "location": loc})
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := s.Drivers.Location(r.Context(), mux.Vars(r)["driverId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// handleZoneDrivers lists available drivers in a zone, or in every zone for
// "all".
func (s *Server) handleZoneDrivers(w http.ResponseWriter, r *http.Request) {
	locs, err := s.Matcher.AvailableDriversFor(r.Context(), mux.Vars(r)["zoneId"], 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}
