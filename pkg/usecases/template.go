package usecases

import (
	"context"
	"encoding/base64"
	"fmt"

	uuidLib "github.com/google/uuid"

	"passbridge/config"
	"passbridge/pkg/cache"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/repo"
	"passbridge/pkg/repo/driver/assets"
	"passbridge/utilities"
)

type TemplateUsecases struct {
	templateRepo repo.TemplateRepoImply
	assetStore   assets.StoreImply
	conf         *config.PassbridgeConfModel
}

// TemplateUsecaseImply is an interface that defines the contract for template ingestion.
type TemplateUsecaseImply interface {
	Create(context.Context, entities.TemplateRequest) (*entities.PassTemplate, error)
	Get(context.Context, string) (*entities.PassTemplate, error)
}

func NewTemplateUsecases(
	templateRepo repo.TemplateRepoImply, assetStore assets.StoreImply, conf *config.PassbridgeConfModel,
) TemplateUsecaseImply {
	return &TemplateUsecases{
		templateRepo: templateRepo,
		assetStore:   assetStore,
		conf:         conf,
	}
}

// Create validates and stores a template. Image blobs go to the asset store;
// the template row only keeps the keys. Stamp fields without a render mode
// get one inferred here, once, from the authored value.
func (usecase *TemplateUsecases) Create(
	ctx context.Context, request entities.TemplateRequest,
) (*entities.PassTemplate, error) {
	log := utilities.NewLoggerWithFields(
		"TemplateUsecases.Create", map[string]interface{}{
			"merchant": request.Template.MerchantID,
		},
	)

	tmpl := request.Template
	if err := validateStyle(tmpl.Style); err != nil {
		return nil, err
	}

	if tmpl.ID == "" {
		tmpl.ID = uuidLib.NewString()
	}
	now := utilities.TimeNow()
	tmpl.Created = now
	tmpl.Updated = now

	inferLegacyRenderModes(&tmpl)

	if len(request.Images) > 0 && tmpl.Images == nil {
		tmpl.Images = make(map[string]string, len(request.Images))
	}
	for slot, encoded := range request.Images {
		if err := utilities.ValidateImage(
			encoded, usecase.conf.Image.MaxSize, usecase.conf.Image.SupportedTypes,
		); err != nil {
			return nil, fmt.Errorf("image %s rejected: %w", slot, err)
		}

		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("image %s decoding failed: %w", slot, err)
		}

		key := fmt.Sprintf("templates/%s/%s", tmpl.ID, slot)
		if err = usecase.assetStore.Put(ctx, key, data); err != nil {
			return nil, err
		}
		tmpl.Images[slot] = key
	}

	if err := usecase.templateRepo.Insert(ctx, &tmpl); err != nil {
		return nil, err
	}

	cache.InvalidateTemplate(tmpl.ID)

	log.Infof("Template %s created", tmpl.ID)

	return &tmpl, nil
}

func (usecase *TemplateUsecases) Get(ctx context.Context, id string) (*entities.PassTemplate, error) {
	if tmpl, ok := cache.GetTemplate(id); ok {
		return tmpl, nil
	}

	tmpl, err := usecase.templateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cache.SetTemplate(tmpl)

	return tmpl, nil
}

func validateStyle(style string) error {
	switch style {
	case consts.StyleStoreCard, consts.StyleCoupon, consts.StyleEventTicket, consts.StyleGeneric:
		return nil
	}
	return fmt.Errorf("unsupported pass style %s", style)
}
