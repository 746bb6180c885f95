package usecases

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/repo"
)

type fakePassRepo struct {
	mu     sync.Mutex
	passes map[string]*entities.IssuedPass
	events []entities.ScanEvent

	failUpdates int
}

func newFakePassRepo(passes ...*entities.IssuedPass) *fakePassRepo {
	f := &fakePassRepo{passes: make(map[string]*entities.IssuedPass)}
	for _, p := range passes {
		f.passes[p.SerialNumber] = p
	}
	return f
}

func (f *fakePassRepo) Insert(_ context.Context, pass *entities.IssuedPass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes[pass.SerialNumber] = pass
	return nil
}

func (f *fakePassRepo) GetBySerial(_ context.Context, serial string) (*entities.IssuedPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pass, ok := f.passes[serial]
	if !ok {
		return nil, repo.ErrPassNotFound
	}
	clone := *pass
	return &clone, nil
}

func (f *fakePassRepo) GetByID(ctx context.Context, id string) (*entities.IssuedPass, error) {
	f.mu.Lock()
	var serial string
	for _, pass := range f.passes {
		if pass.ID == id {
			serial = pass.SerialNumber
			break
		}
	}
	f.mu.Unlock()
	if serial == "" {
		return nil, repo.ErrPassNotFound
	}
	return f.GetBySerial(ctx, serial)
}

func (f *fakePassRepo) UpdateState(
	_ context.Context, serial string, state entities.LiveState, expectedVersion int64, updatedAt time.Time,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failUpdates > 0 {
		f.failUpdates--
		f.passes[serial].StateVersion++
		return false, nil
	}

	pass, ok := f.passes[serial]
	if !ok || pass.StateVersion != expectedVersion {
		return false, nil
	}

	pass.State = state
	pass.StateVersion++
	pass.LastUpdatedAt = updatedAt
	return true, nil
}

func (f *fakePassRepo) MarkVerified(_ context.Context, serial string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pass, ok := f.passes[serial]; ok {
		pass.Verified = true
		pass.DeletedAt = nil
	}
	return nil
}

func (f *fakePassRepo) MarkDeleted(_ context.Context, serial string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pass, ok := f.passes[serial]; ok {
		pass.DeletedAt = &at
	}
	return nil
}

func (f *fakePassRepo) MarkInstalledOnAndroid(_ context.Context, serial string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pass, ok := f.passes[serial]; ok {
		pass.InstalledOnAndroid = true
		pass.Verified = true
	}
	return nil
}

func (f *fakePassRepo) UpdatedSince(
	_ context.Context, serials []string, since time.Time,
) ([]string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		updated []string
		latest  time.Time
	)
	for _, serial := range serials {
		pass, ok := f.passes[serial]
		if !ok || !pass.LastUpdatedAt.After(since) {
			continue
		}
		updated = append(updated, serial)
		if pass.LastUpdatedAt.After(latest) {
			latest = pass.LastUpdatedAt
		}
	}
	return updated, latest, nil
}

func (f *fakePassRepo) AppendScanEvent(_ context.Context, event entities.ScanEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	notified []string
}

func (f *fakeDispatcher) NotifyPass(_ context.Context, pass *entities.IssuedPass) (*entities.DispatchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, pass.SerialNumber)
	return &entities.DispatchReport{Sent: 1}, nil
}

func (f *fakeDispatcher) NotifyPassChanged(ctx context.Context, passID string) (*entities.DispatchReport, error) {
	return &entities.DispatchReport{}, nil
}

func (f *fakeDispatcher) NotifyPasses(ctx context.Context, serials []string) *entities.DispatchReport {
	return &entities.DispatchReport{}
}

func testPass(stamps, maxStamps int) *entities.IssuedPass {
	return &entities.IssuedPass{
		ID:           "pass-1",
		SerialNumber: "serial-1",
		AuthToken:    "token-1",
		WalletType:   consts.WalletApple,
		TemplateID:   "tmpl-1",
		MerchantID:   "merchant-1",
		State: entities.LiveState{
			Stamps:    stamps,
			MaxStamps: maxStamps,
		},
	}
}

func TestApplyAction(t *testing.T) {
	tests := []struct {
		name      string
		state     entities.LiveState
		action    string
		points    int
		wantState entities.LiveState
		wantErr   error
	}{
		{
			name:      "stamp increments",
			state:     entities.LiveState{Stamps: 3, MaxStamps: 10},
			action:    consts.ActionStamp,
			wantState: entities.LiveState{Stamps: 4, MaxStamps: 10},
		},
		{
			name:      "stamp reaching max sets reward ready",
			state:     entities.LiveState{Stamps: 9, MaxStamps: 10},
			action:    consts.ActionStamp,
			wantState: entities.LiveState{Stamps: 10, MaxStamps: 10, RewardReady: true},
		},
		{
			name:      "stamp at max is a no-op",
			state:     entities.LiveState{Stamps: 10, MaxStamps: 10},
			action:    consts.ActionStamp,
			wantState: entities.LiveState{Stamps: 10, MaxStamps: 10, RewardReady: true},
		},
		{
			name:      "stamp without a max never caps",
			state:     entities.LiveState{Stamps: 41},
			action:    consts.ActionStamp,
			wantState: entities.LiveState{Stamps: 42},
		},
		{
			name:    "redeem on a partial card fails",
			state:   entities.LiveState{Stamps: 6, MaxStamps: 10},
			action:  consts.ActionRedeem,
			wantErr: ErrNotRedeemable,
		},
		{
			name:      "redeem resets a full card",
			state:     entities.LiveState{Stamps: 10, MaxStamps: 10, RewardReady: true},
			action:    consts.ActionRedeem,
			wantState: entities.LiveState{MaxStamps: 10, Redemptions: 1},
		},
		{
			name:      "points accumulate",
			state:     entities.LiveState{Points: 100},
			action:    consts.ActionPoints,
			points:    50,
			wantState: entities.LiveState{Points: 150},
		},
		{
			name:    "unknown action rejected",
			state:   entities.LiveState{},
			action:  "upgrade",
			wantErr: ErrUnknownAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyAction(tt.state, tt.action, tt.points)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("applyAction() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyAction() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.wantState) {
				t.Errorf("applyAction() = %+v, want %+v", got, tt.wantState)
			}
		})
	}
}

// The customer scenario: stamp a 10-stamp card from 9, redeem, then keep
// collecting into the next round.
func TestHandleScanFullLifecycle(t *testing.T) {
	passRepo := newFakePassRepo(testPass(9, 10))
	usecase := NewScanUsecases(passRepo, &fakeDispatcher{}, nil)

	pass, err := usecase.HandleScan(context.Background(), entities.ScanRequest{
		PassID: "pass-1", Action: consts.ActionStamp,
	})
	if err != nil {
		t.Fatalf("stamp scan failed: %v", err)
	}
	if pass.State.Stamps != 10 || !pass.State.RewardReady {
		t.Fatalf("after final stamp: stamps = %d, rewardReady = %t, want 10 and true",
			pass.State.Stamps, pass.State.RewardReady)
	}

	pass, err = usecase.HandleScan(context.Background(), entities.ScanRequest{
		PassID: "pass-1", Action: consts.ActionRedeem,
	})
	if err != nil {
		t.Fatalf("redeem scan failed: %v", err)
	}
	if pass.State.Stamps != 0 || pass.State.Redemptions != 1 || pass.State.RewardReady {
		t.Fatalf("after redeem: stamps = %d, redemptions = %d, rewardReady = %t",
			pass.State.Stamps, pass.State.Redemptions, pass.State.RewardReady)
	}

	pass, err = usecase.HandleScan(context.Background(), entities.ScanRequest{
		PassID: "pass-1", Action: consts.ActionStamp,
	})
	if err != nil {
		t.Fatalf("stamp after redeem failed: %v", err)
	}
	if pass.State.Stamps != 1 {
		t.Errorf("stamps after redeem = %d, want 1", pass.State.Stamps)
	}

	if len(passRepo.events) != 3 {
		t.Errorf("scan events recorded = %d, want 3", len(passRepo.events))
	}
}

func TestHandleScanRetriesOnVersionConflict(t *testing.T) {
	passRepo := newFakePassRepo(testPass(3, 10))
	passRepo.failUpdates = 2

	usecase := NewScanUsecases(passRepo, &fakeDispatcher{}, nil)

	pass, err := usecase.HandleScan(context.Background(), entities.ScanRequest{
		PassID: "pass-1", Action: consts.ActionStamp,
	})
	if err != nil {
		t.Fatalf("scan with transient conflicts failed: %v", err)
	}
	if pass.State.Stamps != 4 {
		t.Errorf("stamps = %d, want 4", pass.State.Stamps)
	}
}

func TestHandleScanGivesUpAfterRetries(t *testing.T) {
	passRepo := newFakePassRepo(testPass(3, 10))
	passRepo.failUpdates = casRetries

	usecase := NewScanUsecases(passRepo, &fakeDispatcher{}, nil)

	_, err := usecase.HandleScan(context.Background(), entities.ScanRequest{
		PassID: "pass-1", Action: consts.ActionStamp,
	})
	if !errors.Is(err, ErrScanConflict) {
		t.Fatalf("HandleScan() error = %v, want %v", err, ErrScanConflict)
	}
}

func TestHandleScanUnknownPass(t *testing.T) {
	usecase := NewScanUsecases(newFakePassRepo(), &fakeDispatcher{}, nil)

	_, err := usecase.HandleScan(context.Background(), entities.ScanRequest{
		PassID: "nope", Action: consts.ActionStamp,
	})
	if !errors.Is(err, repo.ErrPassNotFound) {
		t.Fatalf("HandleScan() error = %v, want %v", err, repo.ErrPassNotFound)
	}
}
