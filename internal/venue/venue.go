// Package venue defines the execution-venue boundary. The engine only
// knows this interface; live adapters and the paper venue implement it.
package venue

import (
	"context"
	"errors"

	"ordercore/internal/order"
)

// Fill is one execution slice confirmed by the venue. VenueExecID must be
// unique per slice; the engine uses it to de-duplicate redelivered reports.
type Fill struct {
	VenueOrderID string
	VenueExecID  string
	Quantity     float64
	Price        float64
	Commission   float64
	Venue        string
	// Raw keeps the venue's original payload for audit; may be nil.
	Raw []byte
}

// SubmitRequest carries everything a venue needs for one submission
// attempt. Quantity may be less than the order's remaining amount when the
// router slices for impact.
type SubmitRequest struct {
	Order       order.Order
	Quantity    float64
	TimeInForce order.TimeInForce
}

// ErrUnfillable reports that the venue cannot fill the request under its
// immediacy constraints (FOK entirely, IOC at all). Not a transient error:
// the router must cancel instead of retrying.
var ErrUnfillable = errors.New("venue cannot fill under immediacy constraints")

// ErrTransient marks a retryable venue failure (timeout, throttle).
var ErrTransient = errors.New("transient venue failure")

type Venue interface {
	Name() string
	// Submit executes one slice. A returned Fill may cover less than the
	// requested quantity; the router loops until done or gives up.
	Submit(ctx context.Context, req SubmitRequest) (Fill, error)
	Cancel(ctx context.Context, venueOrderID string) error
}
