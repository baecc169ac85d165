package realtime

import (
	"time"

	"github.com/example/autoride/internal/models"
)

// Event types exchanged over the realtime connection.
const (
	// client -> server
	TypeJoinRide          = "join-ride"
	TypeLeaveRide         = "leave-ride"
	TypeDriverLocation    = "driver-location"
	TypeGetDriverLocation = "get-driver-location" // answered with the last location-update

	// server -> client
	TypeLocationUpdate = "location-update"
	TypeRideStatus     = "ride-status"
	TypeError          = "error"

	// both directions
	TypeChat = "chat"
)

// Event is the JSON envelope for every message in either direction. Only the
// fields relevant to Type are set.
type Event struct {
	Type     string            `json:"type"`
	RideID   string            `json:"rideId,omitempty"`
	DriverID string            `json:"driverId,omitempty"`
	Lat      *float64          `json:"lat,omitempty"`
	Lng      *float64          `json:"lng,omitempty"`
	From     string            `json:"from,omitempty"`
	Text     string            `json:"text,omitempty"`
	Status   models.RideStatus `json:"status,omitempty"`
	Time     *time.Time        `json:"time,omitempty"`
	At       *time.Time        `json:"at,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Coords returns the event position, zero when unset.
func (e Event) Coords() (lat, lng float64) {
	if e.Lat != nil {
		lat = *e.Lat
	}
	if e.Lng != nil {
		lng = *e.Lng
	}
	return lat, lng
}

func locationEvent(driverID string, lat, lng float64, rideID string) Event {
	return Event{Type: TypeLocationUpdate, DriverID: driverID, Lat: &lat, Lng: &lng, RideID: rideID}
}

// ErrorEvent builds the event sent back to a client whose request failed.
func ErrorEvent(msg string) Event {
	return Event{Type: TypeError, Error: msg}
}
