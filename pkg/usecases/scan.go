package usecases

import (
	"context"
	"errors"
	"fmt"

	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/repo"
	"passbridge/pkg/repo/driver/medium"
	"passbridge/utilities"
)

// casRetries bounds the optimistic-concurrency loop; two scanners fighting
// over the same pass resolve within a retry or two.
const casRetries = 3

var (
	ErrNotRedeemable = errors.New("card is not full yet")
	ErrUnknownAction = errors.New("unknown scan action")
	ErrScanConflict  = errors.New("pass was updated concurrently, retry the scan")
)

type ScanUsecases struct {
	passRepo   repo.PassRepoImply
	dispatcher DispatchUsecaseImply
	socket     *medium.Socket
}

// ScanUsecaseImply is an interface that defines the contract for point-of-sale scan handling.
type ScanUsecaseImply interface {
	HandleScan(context.Context, entities.ScanRequest) (*entities.IssuedPass, error)
}

func NewScanUsecases(
	passRepo repo.PassRepoImply, dispatcher DispatchUsecaseImply, socket *medium.Socket,
) ScanUsecaseImply {
	return &ScanUsecases{
		passRepo:   passRepo,
		dispatcher: dispatcher,
		socket:     socket,
	}
}

// HandleScan applies a scan action to the pass behind the barcode. The write
// is a compare-and-set on the state version; losing the race re-reads and
// re-applies so that two concurrent scans both land, in some order.
func (usecase *ScanUsecases) HandleScan(
	ctx context.Context, request entities.ScanRequest,
) (*entities.IssuedPass, error) {
	log := utilities.NewLoggerWithFields(
		"HandleScan", map[string]interface{}{
			"pass":   request.PassID,
			"action": request.Action,
		},
	)

	pass, err := usecase.passRepo.GetByID(ctx, request.PassID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		newState, err := applyAction(pass.State, request.Action, request.Points)
		if err != nil {
			return nil, err
		}

		now := utilities.TimeNow()
		applied, err := usecase.passRepo.UpdateState(ctx, pass.SerialNumber, newState, pass.StateVersion, now)
		if err != nil {
			return nil, err
		}

		if applied {
			pass.State = newState
			pass.StateVersion++
			pass.LastUpdatedAt = now

			usecase.recordAndDispatch(pass, request.Action)

			return pass, nil
		}

		log.Debugf("State version conflict on attempt %d, re-reading", attempt+1)

		pass, err = usecase.passRepo.GetByID(ctx, request.PassID)
		if err != nil {
			return nil, err
		}
	}

	return nil, ErrScanConflict
}

// applyAction is the pure state transition. It never touches storage so the
// compare-and-set loop can replay it against a re-read state.
func applyAction(state entities.LiveState, action string, points int) (entities.LiveState, error) {
	switch action {
	case consts.ActionStamp:
		// collecting past a full card is a no-op, not an error; the
		// scanner shows "card full" based on RewardReady
		if state.MaxStamps > 0 && state.Stamps >= state.MaxStamps {
			state.RewardReady = true
			return state, nil
		}
		state.Stamps++
		if state.MaxStamps > 0 && state.Stamps >= state.MaxStamps {
			state.RewardReady = true
		}
	case consts.ActionRedeem:
		if state.MaxStamps > 0 && state.Stamps < state.MaxStamps {
			return state, ErrNotRedeemable
		}
		state.Stamps = 0
		state.Redemptions++
		state.RewardReady = false
	case consts.ActionPoints:
		state.Points += points
	default:
		return state, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	return state, nil
}

// recordAndDispatch handles everything after the canonical write: the scan
// history row, the wallet fan-out and the merchant feed. None of it may fail
// the scan, the scanner already showed success.
func (usecase *ScanUsecases) recordAndDispatch(pass *entities.IssuedPass, action string) {
	log := utilities.NewLoggerWithFields(
		"recordAndDispatch", map[string]interface{}{
			"serial": pass.SerialNumber,
		},
	)

	event := entities.ScanEvent{
		SerialNumber: pass.SerialNumber,
		Action:       action,
		StampsAfter:  pass.State.Stamps,
		PointsAfter:  pass.State.Points,
		EventTime:    pass.LastUpdatedAt,
	}
	if err := usecase.passRepo.AppendScanEvent(context.Background(), event); err != nil {
		log.WithError(err).Error("failed to append scan event")
	}

	snapshot := *pass
	go func() {
		if _, err := usecase.dispatcher.NotifyPass(context.Background(), &snapshot); err != nil {
			log.WithError(err).Error("dispatch after scan failed")
		}
	}()

	if usecase.socket != nil {
		usecase.socket.Broadcast(entities.UpdateEvent{
			MerchantID:   pass.MerchantID,
			PassID:       pass.ID,
			SerialNumber: pass.SerialNumber,
			Action:       action,
			Stamps:       pass.State.Stamps,
			MaxStamps:    pass.State.MaxStamps,
			Points:       pass.State.Points,
			Time:         pass.LastUpdatedAt.Unix(),
		})
	}
}
