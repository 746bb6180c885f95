package usecases

import (
	"context"
	"encoding/base64"
	"fmt"

	uuidLib "github.com/google/uuid"

	"passbridge/config"
	"passbridge/pkg/builder"
	"passbridge/pkg/cache"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/projector"
	"passbridge/pkg/repo"
	"passbridge/pkg/repo/driver/assets"
	"passbridge/utilities"
)

type PassUsecases struct {
	passRepo      repo.PassRepoImply
	templateRepo  repo.TemplateRepoImply
	assetStore    assets.StoreImply
	renderers     map[string]builder.PassRenderer
	googleBuilder *builder.GooglePassBuilder
	wallet        WalletObjectMutator
	conf          *config.PassbridgeConfModel
}

// PassUsecaseImply is an interface that defines the contract for pass issuance and rendering.
type PassUsecaseImply interface {
	Issue(context.Context, entities.IssueRequest) (*entities.IssuedPassResponse, *builder.Artifact, error)
	Export(context.Context, entities.ExportRequest) (*builder.Artifact, error)
	BuildLatest(context.Context, *entities.IssuedPass) (*builder.Artifact, error)
	GetBySerial(context.Context, string) (*entities.IssuedPass, error)
	HandleGoogleWebhook(context.Context, entities.GoogleWebhookRequest) error
}

func NewPassUsecases(
	passRepo repo.PassRepoImply, templateRepo repo.TemplateRepoImply, assetStore assets.StoreImply,
	renderers map[string]builder.PassRenderer, googleBuilder *builder.GooglePassBuilder,
	wallet WalletObjectMutator, conf *config.PassbridgeConfModel,
) PassUsecaseImply {
	return &PassUsecases{
		passRepo:      passRepo,
		templateRepo:  templateRepo,
		assetStore:    assetStore,
		renderers:     renderers,
		googleBuilder: googleBuilder,
		wallet:        wallet,
		conf:          conf,
	}
}

// Issue mints a pass from a template: serial and auth token are created
// here and never reassigned afterwards.
func (usecase *PassUsecases) Issue(
	ctx context.Context, request entities.IssueRequest,
) (*entities.IssuedPassResponse, *builder.Artifact, error) {
	log := utilities.NewLoggerWithFields(
		"Issue", map[string]interface{}{
			"template":    request.TemplateID,
			"wallet_type": request.WalletType,
		},
	)

	if request.WalletType != consts.WalletApple && request.WalletType != consts.WalletGoogle {
		return nil, nil, fmt.Errorf("unsupported wallet type %s", request.WalletType)
	}

	tmpl, err := usecase.getTemplate(ctx, request.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	authToken, err := utilities.GenerateAuthToken()
	if err != nil {
		return nil, nil, fmt.Errorf("minting auth token failed: %w", err)
	}

	now := utilities.TimeNow()
	pass := &entities.IssuedPass{
		ID:           uuidLib.NewString(),
		SerialNumber: uuidLib.NewString(),
		AuthToken:    authToken,
		WalletType:   request.WalletType,
		TemplateID:   tmpl.ID,
		MerchantID:   tmpl.MerchantID,
		State: entities.LiveState{
			MaxStamps:      tmpl.MaxStamps,
			CustomerNumber: request.CustomerNumber,
			Tier:           request.Tier,
		},
		Created:       now,
		LastUpdatedAt: now,
	}

	if err = usecase.passRepo.Insert(ctx, pass); err != nil {
		return nil, nil, err
	}

	artifact, err := usecase.render(ctx, tmpl, pass)
	if err != nil {
		return nil, nil, err
	}

	if pass.WalletType == consts.WalletGoogle {
		// create-if-absent so the save link can be opened right away
		if err = usecase.wallet.EnsureClass(ctx, usecase.googleBuilder.LoyaltyClass(tmpl)); err != nil {
			return nil, nil, err
		}
	}

	log.Infof("Issued pass %s with serial %s", pass.ID, pass.SerialNumber)

	response := &entities.IssuedPassResponse{
		PassID:       pass.ID,
		SerialNumber: pass.SerialNumber,
		WalletType:   pass.WalletType,
		SaveURL:      artifact.SaveURL,
	}

	return response, artifact, nil
}

// Export renders an ad-hoc pkpass from an inline template with base64
// images. Used for previewing designs; bypasses the registration lifecycle.
func (usecase *PassUsecases) Export(
	ctx context.Context, request entities.ExportRequest,
) (*builder.Artifact, error) {
	images := make(map[string][]byte, len(request.Images))
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
		images[slot] = data
	}

	tmpl := request.Template
	inferLegacyRenderModes(&tmpl)

	state := entities.LiveState{MaxStamps: tmpl.MaxStamps}
	if request.State != nil {
		state = *request.State
	}

	authToken, err := utilities.GenerateAuthToken()
	if err != nil {
		return nil, fmt.Errorf("minting auth token failed: %w", err)
	}

	// ephemeral identity, never persisted
	pass := &entities.IssuedPass{
		ID:           uuidLib.NewString(),
		SerialNumber: uuidLib.NewString(),
		AuthToken:    authToken,
		WalletType:   consts.WalletApple,
		State:        state,
	}

	renderer := usecase.renderers[consts.WalletApple]
	fields := projector.Project(&tmpl, state)

	return renderer.Render(&tmpl, fields, pass, images)
}

// BuildLatest re-renders the pass from its current canonical state. This is
// the pull side of the update protocol for Apple devices.
func (usecase *PassUsecases) BuildLatest(
	ctx context.Context, pass *entities.IssuedPass,
) (*builder.Artifact, error) {
	tmpl, err := usecase.getTemplate(ctx, pass.TemplateID)
	if err != nil {
		return nil, err
	}

	return usecase.render(ctx, tmpl, pass)
}

func (usecase *PassUsecases) GetBySerial(ctx context.Context, serial string) (*entities.IssuedPass, error) {
	return usecase.passRepo.GetBySerial(ctx, serial)
}

// HandleGoogleWebhook reacts to Google Wallet save/delete callbacks. The
// objectId embeds the internal pass id, so the callback resolves without any
// extra lookup table.
func (usecase *PassUsecases) HandleGoogleWebhook(
	ctx context.Context, request entities.GoogleWebhookRequest,
) error {
	log := utilities.NewLoggerWithFields(
		"HandleGoogleWebhook", map[string]interface{}{
			"event":  request.Event,
			"object": request.ObjectID,
		},
	)

	passID, err := usecase.googleBuilder.PassIDFromObjectID(request.ObjectID)
	if err != nil {
		return err
	}

	pass, err := usecase.passRepo.GetByID(ctx, passID)
	if err != nil {
		return err
	}

	switch request.Event {
	// wallets report installation as either save or insert
	case "save", "insert":
		err = usecase.passRepo.MarkInstalledOnAndroid(ctx, pass.SerialNumber)
	case "del":
		err = usecase.passRepo.MarkDeleted(ctx, pass.SerialNumber, utilities.TimeNow())
	default:
		log.Warnf("Ignoring unknown wallet event %s", request.Event)
		return nil
	}
	if err != nil {
		return err
	}

	log.Info("Wallet event applied")

	return nil
}

func (usecase *PassUsecases) render(
	ctx context.Context, tmpl *entities.PassTemplate, pass *entities.IssuedPass,
) (*builder.Artifact, error) {
	renderer, ok := usecase.renderers[pass.WalletType]
	if !ok {
		return nil, fmt.Errorf("no renderer for wallet type %s", pass.WalletType)
	}

	var images map[string][]byte
	if pass.WalletType == consts.WalletApple {
		images = usecase.fetchImages(ctx, tmpl)
	}

	fields := projector.Project(tmpl, pass.State)

	return renderer.Render(tmpl, fields, pass, images)
}

// fetchImages loads template image blobs, tolerating individual misses: a
// broken strip image must not make the whole pass unbuildable.
func (usecase *PassUsecases) fetchImages(ctx context.Context, tmpl *entities.PassTemplate) map[string][]byte {
	log := utilities.NewLoggerWithFields(
		"fetchImages", map[string]interface{}{
			"template": tmpl.ID,
		},
	)

	images := make(map[string][]byte, len(tmpl.Images))
	for slot, key := range tmpl.Images {
		if key == "" {
			continue
		}

		if data, ok := cache.GetImage(key); ok {
			images[slot] = data
			continue
		}

		data, err := usecase.assetStore.Get(ctx, key)
		if err != nil {
			log.WithError(err).Errorf("failed to fetch image %s, skipping slot %s", key, slot)
			continue
		}

		cache.SetImage(key, data)
		images[slot] = data
	}

	return images
}

func (usecase *PassUsecases) getTemplate(ctx context.Context, id string) (*entities.PassTemplate, error) {
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

// inferLegacyRenderModes fills missing render modes on inline templates.
// Older designs stored the icon choice implicitly in the field value; the
// heuristic runs here at the import boundary, never at render time. The
// authored glyph is lifted into StampIcon so the import keeps the
// merchant's pictograph rather than falling back to the default.
func inferLegacyRenderModes(tmpl *entities.PassTemplate) {
	slots := [][]entities.TemplateField{
		tmpl.Fields.Header, tmpl.Fields.Primary, tmpl.Fields.Secondary,
		tmpl.Fields.Auxiliary, tmpl.Fields.Back,
	}
	for _, slot := range slots {
		for i := range slot {
			if slot[i].Key != projector.KeyStamps || slot[i].RenderMode != "" {
				continue
			}
			slot[i].RenderMode = projector.SuggestRenderMode(slot[i].Value)
			if slot[i].RenderMode == consts.RenderModeIcon && slot[i].StampIcon == "" {
				slot[i].StampIcon = projector.FirstPictograph(slot[i].Value)
			}
		}
	}
}
