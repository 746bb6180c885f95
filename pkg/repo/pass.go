package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"passbridge/config"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/utilities"
)

// ErrPassNotFound is the typed not-found result internal callers receive;
// protocol boundaries translate it into their own status codes.
var ErrPassNotFound = errors.New("pass not found")

type PassRepo struct {
	db   *gocql.Session
	conf *config.PassbridgeConfModel
}

// PassRepoImply is an interface that defines the contract for a pass repository implementation.
type PassRepoImply interface {
	Insert(context.Context, *entities.IssuedPass) error
	GetBySerial(context.Context, string) (*entities.IssuedPass, error)
	GetByID(context.Context, string) (*entities.IssuedPass, error)
	UpdateState(context.Context, string, entities.LiveState, int64, time.Time) (bool, error)
	MarkVerified(context.Context, string) error
	MarkDeleted(context.Context, string, time.Time) error
	MarkInstalledOnAndroid(context.Context, string) error
	UpdatedSince(context.Context, []string, time.Time) ([]string, time.Time, error)
	AppendScanEvent(context.Context, entities.ScanEvent) error
}

func NewPassRepo(db *gocql.Session, conf *config.PassbridgeConfModel) PassRepoImply {
	return &PassRepo{db: db, conf: conf}
}

func (repo *PassRepo) table(name string) string {
	return fmt.Sprintf(`%s.%s`, config.GetConfig().DB.Keyspace, name)
}

func (repo *PassRepo) Insert(_ context.Context, pass *entities.IssuedPass) error {
	log := utilities.NewLoggerWithFields(
		"PassRepo.Insert", map[string]interface{}{
			"serial":      pass.SerialNumber,
			"wallet_type": pass.WalletType,
		},
	)

	stateJSON, err := json.Marshal(pass.State)
	if err != nil {
		return fmt.Errorf("state encoding failed: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s
	(serial_number, id, auth_token, wallet_type, template_id, merchant_id, state, state_version, verified, installed_android, created, last_updated)
	 VALUES %s`, repo.table(consts.PassTable), utilities.DBMultiValuePlaceholders(12),
	)

	params := []interface{}{
		pass.SerialNumber,
		pass.ID,
		pass.AuthToken,
		pass.WalletType,
		pass.TemplateID,
		pass.MerchantID,
		string(stateJSON),
		pass.StateVersion,
		pass.Verified,
		pass.InstalledOnAndroid,
		pass.Created,
		pass.LastUpdatedAt,
	}

	if err = repo.db.Query(query, params...).Exec(); err != nil {
		return fmt.Errorf("failed to insert pass: %w", err)
	}

	query = fmt.Sprintf(
		`INSERT INTO %s (id, serial_number) VALUES (?, ?)`, repo.table(consts.PassSerialByIDTable),
	)
	if err = repo.db.Query(query, pass.ID, pass.SerialNumber).Exec(); err != nil {
		return fmt.Errorf("failed to insert pass id lookup: %w", err)
	}

	log.Debug("Pass inserted")

	return nil
}

func (repo *PassRepo) GetBySerial(_ context.Context, serial string) (*entities.IssuedPass, error) {
	query := fmt.Sprintf(
		`SELECT serial_number, id, auth_token, wallet_type, template_id, merchant_id, state, state_version, verified, installed_android, created, last_updated, deleted_at
	 FROM %s WHERE serial_number = ?`, repo.table(consts.PassTable),
	)

	var (
		pass      entities.IssuedPass
		stateJSON string
		deletedAt time.Time
	)
	err := repo.db.Query(query, serial).Scan(
		&pass.SerialNumber, &pass.ID, &pass.AuthToken, &pass.WalletType, &pass.TemplateID,
		&pass.MerchantID, &stateJSON, &pass.StateVersion, &pass.Verified,
		&pass.InstalledOnAndroid, &pass.Created, &pass.LastUpdatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("failed to get pass %s: %w", serial, err)
	}

	if stateJSON != "" {
		if err = json.Unmarshal([]byte(stateJSON), &pass.State); err != nil {
			return nil, fmt.Errorf("state decoding failed for %s: %w", serial, err)
		}
	}
	if !deletedAt.IsZero() {
		pass.DeletedAt = &deletedAt
	}

	return &pass, nil
}

func (repo *PassRepo) GetByID(ctx context.Context, id string) (*entities.IssuedPass, error) {
	query := fmt.Sprintf(
		`SELECT serial_number FROM %s WHERE id = ?`, repo.table(consts.PassSerialByIDTable),
	)

	var serial string
	if err := repo.db.Query(query, id).Scan(&serial); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("failed to resolve pass id %s: %w", id, err)
	}

	return repo.GetBySerial(ctx, serial)
}

// UpdateState applies a compare-and-set write keyed on state_version. The
// caller re-reads and retries when the swap was not applied; two concurrent
// scans of the same pass must never silently overwrite each other.
func (repo *PassRepo) UpdateState(
	_ context.Context, serial string, state entities.LiveState, expectedVersion int64, updatedAt time.Time,
) (bool, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return false, fmt.Errorf("state encoding failed: %w", err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET state = ?, state_version = ?, last_updated = ? WHERE serial_number = ? IF state_version = ?`,
		repo.table(consts.PassTable),
	)

	var currentVersion int64
	applied, err := repo.db.Query(
		query, string(stateJSON), expectedVersion+1, updatedAt, serial, expectedVersion,
	).ScanCAS(&currentVersion)
	if err != nil {
		return false, fmt.Errorf("failed to update pass state: %w", err)
	}

	return applied, nil
}

func (repo *PassRepo) MarkVerified(_ context.Context, serial string) error {
	// a re-registered pass is live again, so the soft-delete marker clears
	query := fmt.Sprintf(
		`UPDATE %s SET verified = true, deleted_at = null WHERE serial_number = ?`, repo.table(consts.PassTable),
	)
	if err := repo.db.Query(query, serial).Exec(); err != nil {
		return fmt.Errorf("failed to mark pass verified: %w", err)
	}

	return nil
}

func (repo *PassRepo) MarkDeleted(_ context.Context, serial string, at time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = ? WHERE serial_number = ?`, repo.table(consts.PassTable),
	)
	if err := repo.db.Query(query, at, serial).Exec(); err != nil {
		return fmt.Errorf("failed to mark pass deleted: %w", err)
	}

	return nil
}

func (repo *PassRepo) MarkInstalledOnAndroid(_ context.Context, serial string) error {
	query := fmt.Sprintf(
		`UPDATE %s SET installed_android = true, verified = true WHERE serial_number = ?`,
		repo.table(consts.PassTable),
	)
	if err := repo.db.Query(query, serial).Exec(); err != nil {
		return fmt.Errorf("failed to mark pass installed: %w", err)
	}

	return nil
}

// UpdatedSince filters the given serials down to passes whose last_updated
// is after the cutoff, and reports the newest last_updated among them.
func (repo *PassRepo) UpdatedSince(
	_ context.Context, serials []string, since time.Time,
) ([]string, time.Time, error) {
	if len(serials) == 0 {
		return nil, time.Time{}, nil
	}

	query := fmt.Sprintf(
		`SELECT serial_number, last_updated FROM %s WHERE serial_number IN ?`, repo.table(consts.PassTable),
	)

	var (
		updated     []string
		lastUpdated time.Time
	)
	iter := repo.db.Query(query, serials).Iter()

	var (
		serial string
		at     time.Time
	)
	for iter.Scan(&serial, &at) {
		if !at.After(since) {
			continue
		}
		updated = append(updated, serial)
		if at.After(lastUpdated) {
			lastUpdated = at
		}
	}
	if err := iter.Close(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to list updated passes: %w", err)
	}

	return updated, lastUpdated, nil
}

func (repo *PassRepo) AppendScanEvent(_ context.Context, event entities.ScanEvent) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (serial_number, event_time, action, stamps_after, points_after) VALUES %s`,
		repo.table(consts.ScanEventTable), utilities.DBMultiValuePlaceholders(5),
	)

	err := repo.db.Query(
		query, event.SerialNumber, event.EventTime, event.Action, event.StampsAfter, event.PointsAfter,
	).Exec()
	if err != nil {
		return fmt.Errorf("failed to append scan event: %w", err)
	}

	return nil
}
