package entities

import "time"

// ScanRequest is what the point-of-sale scanner posts after reading a pass
// barcode. PassID is the internal id embedded in the barcode payload.
type ScanRequest struct {
	PassID string `json:"pass_id" validate:"required"`
	Action string `json:"action" validate:"required"`
	Points int    `json:"points,omitempty"`
}

type ScanEvent struct {
	SerialNumber string    `json:"serial_number"`
	Action       string    `json:"action"`
	StampsAfter  int       `json:"stamps_after"`
	PointsAfter  int       `json:"points_after"`
	EventTime    time.Time `json:"event_time"`
}

// UpdateEvent is broadcast over the merchant websocket feed whenever a
// pass's state changes.
type UpdateEvent struct {
	MerchantID   string `json:"merchant_id"`
	PassID       string `json:"pass_id"`
	SerialNumber string `json:"serial_number"`
	Action       string `json:"action"`
	Stamps       int    `json:"stamps"`
	MaxStamps    int    `json:"max_stamps"`
	Points       int    `json:"points"`
	Time         int64  `json:"time"`
}

// TokenError records one failed push delivery. Partial delivery failure is
// expected and never aborts the batch.
type TokenError struct {
	PushToken string `json:"push_token"`
	Reason    string `json:"reason"`
}

type DispatchReport struct {
	Sent   int          `json:"sent"`
	Errors []TokenError `json:"errors,omitempty"`
}
