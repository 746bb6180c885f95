package entities

import "time"

// DeviceRegistration maps (device, pass type, serial) to a push token.
// Unique per (device, serial); re-registration upserts the token.
type DeviceRegistration struct {
	DeviceLibraryID string    `json:"device_library_identifier"`
	PassTypeID      string    `json:"pass_type_identifier"`
	SerialNumber    string    `json:"serial_number"`
	PushToken       string    `json:"push_token"`
	Created         time.Time `json:"created"`
}

// RegisterRequest is the body PassKit devices POST on registration.
type RegisterRequest struct {
	PushToken string `json:"pushToken" validate:"required"`
}

// UpdatedSerialsResponse answers the "what changed since" poll. LastUpdated
// is a unix-seconds string, echoed back by devices as passesUpdatedSince.
type UpdatedSerialsResponse struct {
	SerialNumbers []string `json:"serialNumbers"`
	LastUpdated   string   `json:"lastUpdated"`
}
