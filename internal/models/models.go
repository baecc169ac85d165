package models

import "time"

// AllZones is the zone affinity wildcard. A driver with this affinity is
// eligible for rides in every zone.
const AllZones = "all"

type Coord struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Zone is a named service area with its own tariff.
type Zone struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	NameMarathi   string  `json:"nameMarathi,omitempty" yaml:"nameMarathi"`
	Center        Coord   `json:"center" yaml:"center"`
	BaseFare      float64 `json:"baseFare" yaml:"baseFare"`
	PerKmRate     float64 `json:"perKmRate" yaml:"perKmRate"`
	PerMinuteRate float64 `json:"perMinuteRate" yaml:"perMinuteRate"`
	MinimumFare   float64 `json:"minimumFare" yaml:"minimumFare"`
	Demand        string  `json:"demand,omitempty" yaml:"demand"` // advisory only
}

// RouteHint is a precomputed fare for a known corridor. From/To are unordered.
type RouteHint struct {
	From       string  `json:"from" yaml:"from"`
	To         string  `json:"to" yaml:"to"`
	Fare       int     `json:"fare" yaml:"fare"`
	DistanceKm float64 `json:"distanceKm" yaml:"distanceKm"`
}

// Matches reports whether the hint covers the pair in either order.
func (h RouteHint) Matches(a, b string) bool {
	return (h.From == a && h.To == b) || (h.From == b && h.To == a)
}

type Location struct {
	Address string  `json:"address"`
	ZoneID  string  `json:"zoneId"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type Driver struct {
	ID            string       `json:"id"`
	Phone         string       `json:"phone"`
	Name          string       `json:"name"`
	VehicleNumber string       `json:"vehicleNumber"`
	AutoNumber    string       `json:"autoNumber"`
	ZoneID        string       `json:"zoneId"`
	Status        DriverStatus `json:"status"`
	Rating        float64      `json:"rating"` // 0..5
	TotalRides    int          `json:"totalRides"`
	IsVerified    bool         `json:"isVerified"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// ServesZone reports whether the driver's affinity covers zoneID.
func (d Driver) ServesZone(zoneID string) bool {
	return d.ZoneID == AllZones || d.ZoneID == zoneID
}

// DriverLocation is the last reported position of a driver. Only the most
// recent report is kept.
type DriverLocation struct {
	DriverID  string       `json:"driverId"`
	Lat       float64      `json:"lat"`
	Lng       float64      `json:"lng"`
	ZoneID    string       `json:"zoneId"`
	Status    DriverStatus `json:"status"`
	RideID    string       `json:"rideId,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type Ride struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	DriverID      string        `json:"driverId,omitempty"`
	DriverName    string        `json:"driverName,omitempty"`
	DriverPhone   string        `json:"driverPhone,omitempty"`
	AutoNumber    string        `json:"autoNumber,omitempty"`
	Pickup        Location      `json:"pickupLocation"`
	Drop          Location      `json:"dropLocation"`
	Status        RideStatus    `json:"status"`
	Fare          int           `json:"fare"`
	EstimatedFare int           `json:"estimatedFare"`
	DistanceKm    float64       `json:"distance"`
	DurationMin   int           `json:"duration"`
	OTP           string        `json:"otp,omitempty"`
	PaymentMethod string        `json:"paymentMethod"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Rating        int           `json:"rating,omitempty"`
	Feedback      string        `json:"feedback,omitempty"`
	CancelReason  string        `json:"cancelReason,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	ArrivedAt     *time.Time    `json:"arrivedAt,omitempty"`
	StartedAt     *time.Time    `json:"startedAt"`
	CompletedAt   *time.Time    `json:"completedAt"`
	CancelledAt   *time.Time    `json:"cancelledAt,omitempty"`
}

// HasDriver reports whether the ride has been accepted by a driver.
func (r Ride) HasDriver() bool { return r.DriverID != "" }

// ForDriver returns the copy of r a driver may see. The otp is withheld: the
// rider hands it over at pickup, which is what proves the rider is present.
func (r Ride) ForDriver() Ride {
	r.OTP = ""
	return r
}

// RidesForDriver applies ForDriver to every ride in rs.
func RidesForDriver(rs []Ride) []Ride {
	out := make([]Ride, len(rs))
	for i, r := range rs {
		out[i] = r.ForDriver()
	}
	return out
}

// RideEvent is emitted after every successful ledger operation.
type RideEvent struct {
	Type     string     `json:"type"`
	RideID   string     `json:"rideId"`
	Status   RideStatus `json:"status"`
	UserID   string     `json:"userId,omitempty"`
	DriverID string     `json:"driverId,omitempty"`
	Fare     int        `json:"fare"`
	At       time.Time  `json:"at"`
}

const (
	EventRideCreated       = "ride.created"
	EventRideAccepted      = "ride.accepted"
	EventRideDeclined      = "ride.declined"
	EventRideDriverArrived = "ride.driver_arrived"
	EventRideStarted       = "ride.started"
	EventRideCompleted     = "ride.completed"
	EventRideCancelled     = "ride.cancelled"
	EventRideRated         = "ride.rated"
)

// NewRideEvent snapshots r into an event of the given type.
func NewRideEvent(typ string, r Ride) RideEvent {
	return RideEvent{
		Type:     typ,
		RideID:   r.ID,
		Status:   r.Status,
		UserID:   r.UserID,
		DriverID: r.DriverID,
		Fare:     r.Fare,
		At:       r.UpdatedAt,
	}
}
