package models

// RideStatus is the lifecycle state of a ride.
type RideStatus string

const (
	RidePending        RideStatus = "pending"
	RideDriverAssigned RideStatus = "driver_assigned"
	RideDriverArrived  RideStatus = "driver_arrived"
	RideInProgress     RideStatus = "in_progress"
	RideCompleted      RideStatus = "completed"
	RideCancelled      RideStatus = "cancelled"
)

func (s RideStatus) Valid() bool {
	switch s {
	case RidePending, RideDriverAssigned, RideDriverArrived, RideInProgress, RideCompleted, RideCancelled:
		return true
	}
	return false
}

// Cancellable reports whether a ride in this state may still be cancelled.
func (s RideStatus) Cancellable() bool {
	return s == RidePending || s == RideDriverAssigned
}

// Terminal reports whether no further transition is possible.
func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
)

func (s DriverStatus) Valid() bool {
	switch s {
	case DriverAvailable, DriverBusy, DriverOffline:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSettled PaymentStatus = "settled"
)

// PaymentCash is the only payment method; settlement happens off-platform.
const PaymentCash = "cash"
