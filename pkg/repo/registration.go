package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"passbridge/config"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/utilities"
)

type RegistrationRepo struct {
	db   *gocql.Session
	conf *config.PassbridgeConfModel
}

// RegistrationRepoImply is an interface that defines the contract for a device registration repository implementation.
type RegistrationRepoImply interface {
	Upsert(context.Context, entities.DeviceRegistration) (bool, error)
	Delete(context.Context, string, string, string) error
	TokensBySerial(context.Context, string) ([]entities.DeviceRegistration, error)
	SerialsByDevice(context.Context, string, string) ([]string, error)
}

func NewRegistrationRepo(db *gocql.Session, conf *config.PassbridgeConfModel) RegistrationRepoImply {
	return &RegistrationRepo{db: db, conf: conf}
}

func (repo *RegistrationRepo) table(name string) string {
	return fmt.Sprintf(`%s.%s`, config.GetConfig().DB.Keyspace, name)
}

// Upsert registers a device for a serial. Re-registration from the same
// device replaces the push token, never duplicates the row; the returned
// flag reports whether the registration is new.
func (repo *RegistrationRepo) Upsert(_ context.Context, reg entities.DeviceRegistration) (bool, error) {
	log := utilities.NewLoggerWithFields(
		"RegistrationRepo.Upsert", map[string]interface{}{
			"device": reg.DeviceLibraryID,
			"serial": reg.SerialNumber,
		},
	)

	query := fmt.Sprintf(
		`INSERT INTO %s (serial_number, device_id, pass_type_id, push_token, created) VALUES %s IF NOT EXISTS`,
		repo.table(consts.RegistrationsBySerial), utilities.DBMultiValuePlaceholders(5),
	)

	var (
		existingSerial, existingDevice, existingType, existingToken string
		existingCreated                                             time.Time
	)
	created, err := repo.db.Query(
		query, reg.SerialNumber, reg.DeviceLibraryID, reg.PassTypeID, reg.PushToken, reg.Created,
	).ScanCAS(&existingSerial, &existingDevice, &existingType, &existingToken, &existingCreated)
	if err != nil {
		return false, fmt.Errorf("failed to insert registration: %w", err)
	}

	if !created {
		// same (device, serial) registering again: last writer wins on
		// the push token
		query = fmt.Sprintf(
			`UPDATE %s SET push_token = ? WHERE serial_number = ? AND device_id = ?`,
			repo.table(consts.RegistrationsBySerial),
		)
		if err = repo.db.Query(query, reg.PushToken, reg.SerialNumber, reg.DeviceLibraryID).Exec(); err != nil {
			return false, fmt.Errorf("failed to refresh push token: %w", err)
		}
	}

	query = fmt.Sprintf(
		`INSERT INTO %s (device_id, pass_type_id, serial_number, created) VALUES %s`,
		repo.table(consts.RegistrationsByDevice), utilities.DBMultiValuePlaceholders(4),
	)
	if err = repo.db.Query(query, reg.DeviceLibraryID, reg.PassTypeID, reg.SerialNumber, reg.Created).Exec(); err != nil {
		return false, fmt.Errorf("failed to insert device registration: %w", err)
	}

	log.Debugf("Registration upserted, created: %t", created)

	return created, nil
}

// Delete is idempotent; removing an absent registration is not an error.
func (repo *RegistrationRepo) Delete(_ context.Context, deviceID, passTypeID, serial string) error {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE serial_number = ? AND device_id = ?`, repo.table(consts.RegistrationsBySerial),
	)
	if err := repo.db.Query(query, serial, deviceID).Exec(); err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}

	query = fmt.Sprintf(
		`DELETE FROM %s WHERE device_id = ? AND pass_type_id = ? AND serial_number = ?`,
		repo.table(consts.RegistrationsByDevice),
	)
	if err := repo.db.Query(query, deviceID, passTypeID, serial).Exec(); err != nil {
		return fmt.Errorf("failed to delete device registration: %w", err)
	}

	return nil
}

func (repo *RegistrationRepo) TokensBySerial(_ context.Context, serial string) ([]entities.DeviceRegistration, error) {
	query := fmt.Sprintf(
		`SELECT serial_number, device_id, pass_type_id, push_token, created FROM %s WHERE serial_number = ?`,
		repo.table(consts.RegistrationsBySerial),
	)

	var regs []entities.DeviceRegistration
	iter := repo.db.Query(query, serial).Iter()

	var reg entities.DeviceRegistration
	for iter.Scan(&reg.SerialNumber, &reg.DeviceLibraryID, &reg.PassTypeID, &reg.PushToken, &reg.Created) {
		regs = append(regs, reg)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list registrations for %s: %w", serial, err)
	}

	return regs, nil
}

func (repo *RegistrationRepo) SerialsByDevice(_ context.Context, deviceID, passTypeID string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT serial_number FROM %s WHERE device_id = ? AND pass_type_id = ?`,
		repo.table(consts.RegistrationsByDevice),
	)

	var serials []string
	iter := repo.db.Query(query, deviceID, passTypeID).Iter()

	var serial string
	for iter.Scan(&serial) {
		serials = append(serials, serial)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list serials for device %s: %w", deviceID, err)
	}

	return serials, nil
}
