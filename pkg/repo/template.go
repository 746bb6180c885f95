package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"passbridge/config"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/utilities"
)

var ErrTemplateNotFound = errors.New("template not found")

type TemplateRepo struct {
	db   *gocql.Session
	conf *config.PassbridgeConfModel
}

// TemplateRepoImply is an interface that defines the contract for a template repository implementation.
type TemplateRepoImply interface {
	Insert(context.Context, *entities.PassTemplate) error
	Get(context.Context, string) (*entities.PassTemplate, error)
}

func NewTemplateRepo(db *gocql.Session, conf *config.PassbridgeConfModel) TemplateRepoImply {
	return &TemplateRepo{db: db, conf: conf}
}

func (repo *TemplateRepo) table() string {
	return fmt.Sprintf(`%s.%s`, config.GetConfig().DB.Keyspace, consts.PassTemplateTable)
}

func (repo *TemplateRepo) Insert(_ context.Context, tmpl *entities.PassTemplate) error {
	log := utilities.NewLoggerWithFields(
		"TemplateRepo.Insert", map[string]interface{}{
			"template": tmpl.ID,
			"merchant": tmpl.MerchantID,
		},
	)

	colorsJSON, err := json.Marshal(tmpl.Colors)
	if err != nil {
		return fmt.Errorf("colors encoding failed: %w", err)
	}
	fieldsJSON, err := json.Marshal(tmpl.Fields)
	if err != nil {
		return fmt.Errorf("fields encoding failed: %w", err)
	}
	locationsJSON, err := json.Marshal(tmpl.Locations)
	if err != nil {
		return fmt.Errorf("locations encoding failed: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s
	(id, merchant_id, name, description, style, colors_json, fields_json, images, barcode_format, locations_json, max_stamps, created, updated)
	 VALUES %s`, repo.table(), utilities.DBMultiValuePlaceholders(13),
	)

	params := []interface{}{
		tmpl.ID,
		tmpl.MerchantID,
		tmpl.Name,
		tmpl.Description,
		tmpl.Style,
		string(colorsJSON),
		string(fieldsJSON),
		tmpl.Images,
		tmpl.Barcode.Format,
		string(locationsJSON),
		tmpl.MaxStamps,
		tmpl.Created,
		tmpl.Updated,
	}

	if err = repo.db.Query(query, params...).Exec(); err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}

	log.Debug("Template inserted")

	return nil
}

func (repo *TemplateRepo) Get(_ context.Context, id string) (*entities.PassTemplate, error) {
	query := fmt.Sprintf(
		`SELECT id, merchant_id, name, description, style, colors_json, fields_json, images, barcode_format, locations_json, max_stamps, created, updated
	 FROM %s WHERE id = ?`, repo.table(),
	)

	var (
		tmpl                                  entities.PassTemplate
		colorsJSON, fieldsJSON, locationsJSON string
	)
	err := repo.db.Query(query, id).Scan(
		&tmpl.ID, &tmpl.MerchantID, &tmpl.Name, &tmpl.Description, &tmpl.Style,
		&colorsJSON, &fieldsJSON, &tmpl.Images, &tmpl.Barcode.Format, &locationsJSON,
		&tmpl.MaxStamps, &tmpl.Created, &tmpl.Updated,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}

	if colorsJSON != "" {
		if err = json.Unmarshal([]byte(colorsJSON), &tmpl.Colors); err != nil {
			return nil, fmt.Errorf("colors decoding failed for %s: %w", id, err)
		}
	}
	if fieldsJSON != "" {
		if err = json.Unmarshal([]byte(fieldsJSON), &tmpl.Fields); err != nil {
			return nil, fmt.Errorf("fields decoding failed for %s: %w", id, err)
		}
	}
	if locationsJSON != "" {
		if err = json.Unmarshal([]byte(locationsJSON), &tmpl.Locations); err != nil {
			return nil, fmt.Errorf("locations decoding failed for %s: %w", id, err)
		}
	}

	return &tmpl, nil
}
