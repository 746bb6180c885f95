package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"passbridge/pkg/builder"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/middlewares"
	"passbridge/pkg/repo"
)

type fakePassUsecases struct {
	passes   map[string]*entities.IssuedPass
	buildErr error
}

func (f *fakePassUsecases) Issue(
	_ context.Context, _ entities.IssueRequest,
) (*entities.IssuedPassResponse, *builder.Artifact, error) {
	return nil, nil, nil
}

func (f *fakePassUsecases) Export(_ context.Context, _ entities.ExportRequest) (*builder.Artifact, error) {
	return nil, nil
}

func (f *fakePassUsecases) BuildLatest(
	_ context.Context, pass *entities.IssuedPass,
) (*builder.Artifact, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &builder.Artifact{
		ContentType: builder.PkpassContentType,
		Data:        []byte("pkpass-bundle-" + pass.SerialNumber),
	}, nil
}

func (f *fakePassUsecases) GetBySerial(_ context.Context, serial string) (*entities.IssuedPass, error) {
	pass, ok := f.passes[serial]
	if !ok {
		return nil, repo.ErrPassNotFound
	}
	return pass, nil
}

func (f *fakePassUsecases) HandleGoogleWebhook(_ context.Context, _ entities.GoogleWebhookRequest) error {
	return nil
}

type fakeRegistrationUsecases struct {
	registered map[string]bool
	updated    *entities.UpdatedSerialsResponse
}

func (f *fakeRegistrationUsecases) Register(
	_ context.Context, reg entities.DeviceRegistration,
) (bool, error) {
	key := reg.DeviceLibraryID + "/" + reg.SerialNumber
	if f.registered[key] {
		return false, nil
	}
	f.registered[key] = true
	return true, nil
}

func (f *fakeRegistrationUsecases) Unregister(_ context.Context, _, _, _ string) error {
	return nil
}

func (f *fakeRegistrationUsecases) ListUpdatedSerials(
	_ context.Context, _, _ string, _ time.Time,
) (*entities.UpdatedSerialsResponse, error) {
	return f.updated, nil
}

func newPassKitTestServer(t *testing.T) (*gin.Engine, *fakePassUsecases, *fakeRegistrationUsecases) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	passUseCases := &fakePassUsecases{
		passes: map[string]*entities.IssuedPass{
			"serial-1": {
				ID:            "pass-1",
				SerialNumber:  "serial-1",
				AuthToken:     "secret-token",
				WalletType:    consts.WalletApple,
				MerchantID:    "merchant-1",
				LastUpdatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			},
		},
	}
	registrationUseCases := &fakeRegistrationUsecases{registered: map[string]bool{}}

	controller := &PassKitController{
		registrations: registrationUseCases,
		passes:        passUseCases,
		middleWares:   middlewares.NewMiddlewares(passUseCases),
	}

	router := gin.New()
	v1 := router.Group("v1")
	v1.GET("/devices/:device_id/registrations/:pass_type_id", controller.ListUpdatedSerials)
	authed := v1.Group("", controller.middleWares.ValidatePassToken)
	authed.POST("/devices/:device_id/registrations/:pass_type_id/:serial", controller.Register)
	authed.DELETE("/devices/:device_id/registrations/:pass_type_id/:serial", controller.Unregister)
	authed.GET("/passes/:pass_type_id/:serial", controller.GetLatestPass)

	return router, passUseCases, registrationUseCases
}

func registerRequest(serial, authHeader string) *http.Request {
	body, _ := json.Marshal(entities.RegisterRequest{PushToken: "apns-token"})
	req := httptest.NewRequest(
		http.MethodPost,
		"/v1/devices/device-1/registrations/pass.com.example.loyalty/"+serial,
		bytes.NewReader(body),
	)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}

// A wrong token and an unknown serial must be indistinguishable to the
// caller.
func TestRegisterAuthSymmetry(t *testing.T) {
	router, _, _ := newPassKitTestServer(t)

	tests := []struct {
		name       string
		serial     string
		authHeader string
		wantStatus int
	}{
		{
			name:       "missing header",
			serial:     "serial-1",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			serial:     "serial-1",
			authHeader: "Bearer secret-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong token",
			serial:     "serial-1",
			authHeader: "ApplePass wrong-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown serial",
			serial:     "serial-unknown",
			authHeader: "ApplePass secret-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid",
			serial:     "serial-1",
			authHeader: "ApplePass secret-token",
			wantStatus: http.StatusCreated,
		},
	}

	var unauthorizedBodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, registerRequest(tt.serial, tt.authHeader))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Code == http.StatusUnauthorized {
				unauthorizedBodies = append(unauthorizedBodies, rec.Body.String())
			}
		})
	}

	for i := 1; i < len(unauthorizedBodies); i++ {
		if unauthorizedBodies[i] != unauthorizedBodies[0] {
			t.Errorf("401 bodies differ between failure modes: %q vs %q",
				unauthorizedBodies[0], unauthorizedBodies[i])
		}
	}
}

func TestRegisterIdempotent(t *testing.T) {
	router, _, _ := newPassKitTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, registerRequest("serial-1", "ApplePass secret-token"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first registration status = %d, want 201", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, registerRequest("serial-1", "ApplePass secret-token"))
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat registration status = %d, want 200", rec.Code)
	}
}

func TestUnregister(t *testing.T) {
	router, _, _ := newPassKitTestServer(t)

	req := httptest.NewRequest(
		http.MethodDelete, "/v1/devices/device-1/registrations/pass.com.example.loyalty/serial-1", nil,
	)
	req.Header.Set("Authorization", "ApplePass secret-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unregister status = %d, want 200", rec.Code)
	}
}

func TestGetLatestPass(t *testing.T) {
	router, _, _ := newPassKitTestServer(t)

	req := httptest.NewRequest(
		http.MethodGet, "/v1/passes/pass.com.example.loyalty/serial-1", nil,
	)
	req.Header.Set("Authorization", "ApplePass secret-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != builder.PkpassContentType {
		t.Errorf("content type = %s, want %s", got, builder.PkpassContentType)
	}
	if rec.Header().Get("Last-Modified") == "" {
		t.Error("Last-Modified header missing")
	}
	if rec.Body.String() != "pkpass-bundle-serial-1" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestGetLatestPassNotModified(t *testing.T) {
	router, _, _ := newPassKitTestServer(t)

	req := httptest.NewRequest(
		http.MethodGet, "/v1/passes/pass.com.example.loyalty/serial-1", nil,
	)
	req.Header.Set("Authorization", "ApplePass secret-token")
	req.Header.Set("If-Modified-Since", time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
}

// A pass whose template or signing material is gone answers 404, so the
// device stops retrying; other build faults stay a 500.
func TestGetLatestPassBuildFailure(t *testing.T) {
	router, passUseCases, _ := newPassKitTestServer(t)

	req := func() *http.Request {
		r := httptest.NewRequest(
			http.MethodGet, "/v1/passes/pass.com.example.loyalty/serial-1", nil,
		)
		r.Header.Set("Authorization", "ApplePass secret-token")
		return r
	}

	passUseCases.buildErr = repo.ErrTemplateNotFound
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing template: status = %d, want 404", rec.Code)
	}

	passUseCases.buildErr = builder.ErrSigningConfig
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("broken signing config: status = %d, want 404", rec.Code)
	}

	passUseCases.buildErr = errors.New("cassandra unavailable")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("internal fault: status = %d, want 500", rec.Code)
	}
}

func TestListUpdatedSerials(t *testing.T) {
	router, _, registrationUseCases := newPassKitTestServer(t)

	registrationUseCases.updated = &entities.UpdatedSerialsResponse{
		SerialNumbers: []string{"serial-1"},
		LastUpdated:   "1717243200",
	}

	req := httptest.NewRequest(
		http.MethodGet, "/v1/devices/device-1/registrations/pass.com.example.loyalty?passesUpdatedSince=1717000000", nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var response entities.UpdatedSerialsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if len(response.SerialNumbers) != 1 || response.SerialNumbers[0] != "serial-1" {
		t.Errorf("serialNumbers = %v, want [serial-1]", response.SerialNumbers)
	}
	if response.LastUpdated != "1717243200" {
		t.Errorf("lastUpdated = %s, want 1717243200", response.LastUpdated)
	}
}

func TestListUpdatedSerialsNoChanges(t *testing.T) {
	router, _, _ := newPassKitTestServer(t)

	req := httptest.NewRequest(
		http.MethodGet, "/v1/devices/device-1/registrations/pass.com.example.loyalty", nil,
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
