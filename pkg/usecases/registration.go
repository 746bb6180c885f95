package usecases

import (
	"context"
	"time"

	"github.com/spf13/cast"

	"passbridge/pkg/entities"
	"passbridge/pkg/repo"
	"passbridge/utilities"
)

type RegistrationUsecases struct {
	registrationRepo repo.RegistrationRepoImply
	passRepo         repo.PassRepoImply
}

// RegistrationUsecaseImply is an interface that defines the contract for the device registration lifecycle.
type RegistrationUsecaseImply interface {
	Register(context.Context, entities.DeviceRegistration) (bool, error)
	Unregister(context.Context, string, string, string) error
	ListUpdatedSerials(context.Context, string, string, time.Time) (*entities.UpdatedSerialsResponse, error)
}

func NewRegistrationUsecases(
	registrationRepo repo.RegistrationRepoImply, passRepo repo.PassRepoImply,
) RegistrationUsecaseImply {
	return &RegistrationUsecases{
		registrationRepo: registrationRepo,
		passRepo:         passRepo,
	}
}

// Register records a device's interest in a serial. The first registration
// also proves the pass reached a real wallet, so the pass flips to verified.
func (usecase *RegistrationUsecases) Register(
	ctx context.Context, reg entities.DeviceRegistration,
) (bool, error) {
	log := utilities.NewLoggerWithFields(
		"Register", map[string]interface{}{
			"device": reg.DeviceLibraryID,
			"serial": reg.SerialNumber,
		},
	)

	reg.Created = utilities.TimeNow()

	created, err := usecase.registrationRepo.Upsert(ctx, reg)
	if err != nil {
		return false, err
	}

	if err = usecase.passRepo.MarkVerified(ctx, reg.SerialNumber); err != nil {
		return false, err
	}

	if created {
		log.Info("Device registered")
	}

	return created, nil
}

// Unregister removes the device's registration and soft-deletes the pass.
// A later re-registration revives it, MarkVerified clears the marker.
func (usecase *RegistrationUsecases) Unregister(
	ctx context.Context, deviceID, passTypeID, serial string,
) error {
	log := utilities.NewLoggerWithFields(
		"Unregister", map[string]interface{}{
			"device": deviceID,
			"serial": serial,
		},
	)

	if err := usecase.registrationRepo.Delete(ctx, deviceID, passTypeID, serial); err != nil {
		return err
	}

	if err := usecase.passRepo.MarkDeleted(ctx, serial, utilities.TimeNow()); err != nil {
		return err
	}

	log.Info("Device unregistered, pass marked deleted")

	return nil
}

// ListUpdatedSerials answers the "what changed since" poll. A nil response
// with a nil error means nothing changed and the caller answers 204.
func (usecase *RegistrationUsecases) ListUpdatedSerials(
	ctx context.Context, deviceID, passTypeID string, since time.Time,
) (*entities.UpdatedSerialsResponse, error) {
	serials, err := usecase.registrationRepo.SerialsByDevice(ctx, deviceID, passTypeID)
	if err != nil {
		return nil, err
	}
	if len(serials) == 0 {
		return nil, nil
	}

	updated, lastUpdated, err := usecase.passRepo.UpdatedSince(ctx, serials, since)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, nil
	}

	return &entities.UpdatedSerialsResponse{
		SerialNumbers: updated,
		LastUpdated:   cast.ToString(lastUpdated.Unix()),
	}, nil
}
