package usecases

import (
	"context"
	"errors"
	"sync"

	"passbridge/config"
	"passbridge/pkg/builder"
	"passbridge/pkg/cache"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/projector"
	"passbridge/pkg/repo"
	"passbridge/pkg/repo/driver/medium"
	"passbridge/utilities"
)

type DispatchUsecases struct {
	passRepo         repo.PassRepoImply
	registrationRepo repo.RegistrationRepoImply
	templateRepo     repo.TemplateRepoImply
	pusher           ApplePusher
	wallet           WalletObjectMutator
	googleBuilder    *builder.GooglePassBuilder
	conf             *config.PassbridgeConfModel
}

// DispatchUsecaseImply is an interface that defines the contract for pushing pass updates out to wallets.
type DispatchUsecaseImply interface {
	NotifyPass(context.Context, *entities.IssuedPass) (*entities.DispatchReport, error)
	NotifyPassChanged(context.Context, string) (*entities.DispatchReport, error)
	NotifyPasses(context.Context, []string) *entities.DispatchReport
}

func NewDispatchUsecases(
	passRepo repo.PassRepoImply, registrationRepo repo.RegistrationRepoImply,
	templateRepo repo.TemplateRepoImply, pusher ApplePusher, wallet WalletObjectMutator,
	googleBuilder *builder.GooglePassBuilder, conf *config.PassbridgeConfModel,
) DispatchUsecaseImply {
	return &DispatchUsecases{
		passRepo:         passRepo,
		registrationRepo: registrationRepo,
		templateRepo:     templateRepo,
		pusher:           pusher,
		wallet:           wallet,
		googleBuilder:    googleBuilder,
		conf:             conf,
	}
}

// NotifyPassChanged resolves the pass by internal id and fans the change out.
func (usecase *DispatchUsecases) NotifyPassChanged(
	ctx context.Context, passID string,
) (*entities.DispatchReport, error) {
	pass, err := usecase.passRepo.GetByID(ctx, passID)
	if err != nil {
		return nil, err
	}

	return usecase.NotifyPass(ctx, pass)
}

// NotifyPass fans a state change out to whichever wallet holds the pass.
// Apple devices get a silent push and pull fresh bytes themselves; Google
// objects are rewritten server-side.
func (usecase *DispatchUsecases) NotifyPass(
	ctx context.Context, pass *entities.IssuedPass,
) (*entities.DispatchReport, error) {
	if pass.WalletType == consts.WalletGoogle {
		return usecase.notifyGoogle(ctx, pass)
	}

	return usecase.notifyApple(ctx, pass)
}

// notifyApple pushes every registered device of the serial. One bad token
// never blocks delivery to the others; tokens APNs reports gone are pruned.
func (usecase *DispatchUsecases) notifyApple(
	ctx context.Context, pass *entities.IssuedPass,
) (*entities.DispatchReport, error) {
	log := utilities.NewLoggerWithFields(
		"notifyApple", map[string]interface{}{
			"serial": pass.SerialNumber,
		},
	)

	regs, err := usecase.registrationRepo.TokensBySerial(ctx, pass.SerialNumber)
	if err != nil {
		return nil, err
	}

	report := &entities.DispatchReport{}
	if len(regs) == 0 {
		return report, nil
	}

	var (
		mutex     sync.Mutex
		waitGroup sync.WaitGroup
	)
	throttler := make(chan struct{}, usecase.conf.Dispatch.Workers)

	for _, reg := range regs {
		waitGroup.Add(1)
		throttler <- struct{}{}

		go func(reg entities.DeviceRegistration) {
			defer func() {
				<-throttler
				waitGroup.Done()
			}()

			pushErr := usecase.pusher.PushUpdate(ctx, reg.PushToken)

			mutex.Lock()
			defer mutex.Unlock()

			if pushErr == nil {
				report.Sent++
				return
			}

			report.Errors = append(report.Errors, entities.TokenError{
				PushToken: reg.PushToken,
				Reason:    pushErr.Error(),
			})

			if errors.Is(pushErr, medium.ErrPushTokenGone) {
				if delErr := usecase.registrationRepo.Delete(
					ctx, reg.DeviceLibraryID, reg.PassTypeID, reg.SerialNumber,
				); delErr != nil {
					log.WithError(delErr).Error("failed to prune dead registration")
				}
			}
		}(reg)
	}

	waitGroup.Wait()

	log.Infof("Pushed update to %d of %d devices", report.Sent, len(regs))

	return report, nil
}

// notifyGoogle rewrites the loyalty object from the pass's current state and
// attaches the latest news as a wallet message when one is set.
func (usecase *DispatchUsecases) notifyGoogle(
	ctx context.Context, pass *entities.IssuedPass,
) (*entities.DispatchReport, error) {
	tmpl, err := usecase.getTemplate(ctx, pass.TemplateID)
	if err != nil {
		return nil, err
	}

	fields := projector.Project(tmpl, pass.State)
	object := usecase.googleBuilder.LoyaltyObject(tmpl, fields, pass)

	if err = usecase.wallet.UpsertObject(ctx, object); err != nil {
		return nil, err
	}

	if pass.State.LatestNews != "" {
		objectID := usecase.googleBuilder.ObjectID(pass.ID)
		if err = usecase.wallet.AddMessage(ctx, objectID, tmpl.Name, pass.State.LatestNews); err != nil {
			return nil, err
		}
	}

	return &entities.DispatchReport{Sent: 1}, nil
}

// NotifyPasses fans out over many serials in batches, e.g. after a template
// change that touches every issued pass. Per-pass failures are collected,
// never fatal.
func (usecase *DispatchUsecases) NotifyPasses(ctx context.Context, serials []string) *entities.DispatchReport {
	log := utilities.NewLogger("NotifyPasses")

	report := &entities.DispatchReport{}
	batchSize := usecase.conf.Dispatch.BatchSize
	if batchSize <= 0 {
		batchSize = len(serials)
	}

	for start := 0; start < len(serials); start += batchSize {
		end := start + batchSize
		if end > len(serials) {
			end = len(serials)
		}

		for _, serial := range serials[start:end] {
			pass, err := usecase.passRepo.GetBySerial(ctx, serial)
			if err != nil {
				log.WithError(err).Errorf("failed to load pass %s, skipping", serial)
				report.Errors = append(report.Errors, entities.TokenError{Reason: err.Error()})
				continue
			}

			passReport, err := usecase.NotifyPass(ctx, pass)
			if err != nil {
				log.WithError(err).Errorf("dispatch failed for pass %s", serial)
				report.Errors = append(report.Errors, entities.TokenError{Reason: err.Error()})
				continue
			}

			report.Sent += passReport.Sent
			report.Errors = append(report.Errors, passReport.Errors...)
		}
	}

	return report
}

func (usecase *DispatchUsecases) getTemplate(ctx context.Context, id string) (*entities.PassTemplate, error) {
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
