package types

import (
	"fmt"

	"github.com/samber/lo"
)

// RideStatus represents the lifecycle status of a ride
type RideStatus string

const (
	RideStatusActive    RideStatus = "ACTIVE"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCancelled RideStatus = "CANCELLED"
)

func (s RideStatus) String() string {
	return string(s)
}

func (s RideStatus) Validate() error {
	allowed := []RideStatus{
		RideStatusActive,
		RideStatusCompleted,
		RideStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid ride status: %s", s)
	}
	return nil
}
