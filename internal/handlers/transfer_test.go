package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainerrors "airtime/internal/errors"
	"airtime/internal/handlers"
	"airtime/internal/middleware"
	"airtime/internal/models"
	"airtime/internal/routes"
	"airtime/internal/services/transfer"
	"airtime/internal/utils"
)

const testSecret = "test-secret"

type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) Transfer(ctx context.Context, req transfer.Request) transfer.Outcome {
	return m.Called(ctx, req).Get(0).(transfer.Outcome)
}

func (m *MockTransferService) TransferWithReason(ctx context.Context, req transfer.Request) transfer.Outcome {
	return m.Called(ctx, req).Get(0).(transfer.Outcome)
}

func (m *MockTransferService) TransferWithoutPin(ctx context.Context, req transfer.PinlessRequest) transfer.Outcome {
	return m.Called(ctx, req).Get(0).(transfer.Outcome)
}

func (m *MockTransferService) Validate(ctx context.Context, req transfer.Request) transfer.Outcome {
	return m.Called(ctx, req).Get(0).(transfer.Outcome)
}

type MockConfigAdmin struct {
	mock.Mock
}

func (m *MockConfigAdmin) UpsertSetting(ctx context.Context, setting *models.Setting) error {
	return m.Called(ctx, setting).Error(0)
}

func (m *MockConfigAdmin) InvalidateCache(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

type reloader struct{ err error }

func (r reloader) Reload(ctx context.Context) error { return r.err }

type testApp struct {
	app      *fiber.App
	service  *MockTransferService
	configs  *MockConfigAdmin
	settings *countingInvalidator
}

func newTestApp(t *testing.T, reloadErr error, checks map[string]handlers.Pinger) *testApp {
	t.Helper()
	ta := &testApp{
		app:      fiber.New(),
		service:  new(MockTransferService),
		configs:  new(MockConfigAdmin),
		settings: &countingInvalidator{},
	}
	routes.Register(ta.app, routes.Handlers{
		Transfer: handlers.NewTransferHandler(ta.service),
		Admin:    handlers.NewAdminHandler(ta.configs, ta.settings, reloader{err: reloadErr}, nil),
		Health:   handlers.NewHealthHandler(checks, nil),
		Auth:     middleware.NewAuthMiddleware(testSecret, nil),
	})
	return ta
}

func token(t *testing.T, username, role string) string {
	t.Helper()
	signed, err := utils.GenerateToken(&models.UserClaims{UserID: 42, Username: username, Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return signed
}

func (ta *testApp) do(t *testing.T, method, path, bearer, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestTransferEndpoint(t *testing.T) {
	ta := newTestApp(t, nil, nil)
	ta.service.On("Transfer", mock.Anything, transfer.Request{
		Source: "96811111", Destination: "96822222",
		AmountMajor: 10, AmountMinor: 500, Pin: "1234",
		Actor: "agent-7", RequestID: "req-1",
	}).Return(transfer.Outcome{Code: 0, Message: "Transfer completed successfully", TransactionID: 9}).Once()

	status, body := ta.do(t, http.MethodPost, "/api/transfers", token(t, "agent-7", models.RoleAgent),
		`{"source":"96811111","destination":"96822222","amount_major":10,"amount_minor":500,"pin":"1234"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["code"])
	assert.EqualValues(t, 9, body["transaction_id"])
	assert.Equal(t, "Transfer completed successfully", body["message"])
	ta.service.AssertExpectations(t)
}

func TestTransferEndpoint_StatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{domainerrors.CodeSameNumber, http.StatusUnprocessableEntity},
		{domainerrors.CodeTransferNotAllowed, http.StatusUnprocessableEntity},
		{domainerrors.CodeMiscellaneous, http.StatusInternalServerError},
		{domainerrors.CodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		ta := newTestApp(t, nil, nil)
		ta.service.On("Validate", mock.Anything, mock.Anything).
			Return(transfer.Outcome{Code: tt.code, Message: "x"}).Once()

		status, body := ta.do(t, http.MethodPost, "/api/transfers/validate", token(t, "agent-7", models.RoleAgent),
			`{"source":"96811111","destination":"96822222","amount_major":10}`)

		assert.Equal(t, tt.want, status, "code %d", tt.code)
		assert.EqualValues(t, tt.code, body["code"])
		assert.NotContains(t, body, "transaction_id")
	}
}

func TestTransferWithReasonEndpoint(t *testing.T) {
	ta := newTestApp(t, nil, nil)
	ta.service.On("TransferWithReason", mock.Anything, mock.MatchedBy(func(r transfer.Request) bool {
		return r.AdjustmentReason == "PROMO" && r.Actor == "agent-7"
	})).Return(transfer.Outcome{Code: 0, Message: "ok", TransactionID: 3}).Once()

	status, _ := ta.do(t, http.MethodPost, "/api/transfers/adjustment", token(t, "agent-7", models.RoleAgent),
		`{"source":"96811111","destination":"96822222","amount_major":10,"pin":"1234","reason":"PROMO"}`)

	assert.Equal(t, http.StatusOK, status)
	ta.service.AssertExpectations(t)
}

func TestServiceCenterEndpoint(t *testing.T) {
	ta := newTestApp(t, nil, nil)
	ta.service.On("TransferWithoutPin", mock.Anything, mock.MatchedBy(func(r transfer.PinlessRequest) bool {
		return r.Amount.Equal(decimal.RequireFromString("12.345")) && r.Actor == "desk-1"
	})).Return(transfer.Outcome{Code: 0, Message: "ok", TransactionID: 5}).Once()

	status, body := ta.do(t, http.MethodPost, "/api/transfers/service-center", token(t, "desk-1", models.RoleServiceCenter),
		`{"source":"96811111","destination":"96822222","amount":"12.345"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, body["transaction_id"])
	ta.service.AssertExpectations(t)
}

func TestServiceCenterEndpoint_RequiresRole(t *testing.T) {
	ta := newTestApp(t, nil, nil)

	status, _ := ta.do(t, http.MethodPost, "/api/transfers/service-center", token(t, "agent-7", models.RoleAgent),
		`{"source":"96811111","destination":"96822222","amount":"10"}`)

	assert.Equal(t, http.StatusForbidden, status)
	ta.service.AssertNotCalled(t, "TransferWithoutPin", mock.Anything, mock.Anything)
}

func TestAuthentication(t *testing.T) {
	ta := newTestApp(t, nil, nil)

	status, _ := ta.do(t, http.MethodPost, "/api/transfers", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ta.do(t, http.MethodPost, "/api/transfers", "not-a-token", `{}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.UserClaims{Username: "x", Role: models.RoleAdmin}).
		SignedString([]byte("other-secret"))
	require.NoError(t, err)
	status, _ = ta.do(t, http.MethodPost, "/api/transfers", forged, `{}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	ta.service.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
}

func TestTransferEndpoint_InvalidBody(t *testing.T) {
	ta := newTestApp(t, nil, nil)

	status, _ := ta.do(t, http.MethodPost, "/api/transfers", token(t, "agent-7", models.RoleAgent), `{"amount_major":"ten"`)

	assert.Equal(t, http.StatusBadRequest, status)
	ta.service.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
}

func TestAdminInvalidateSettings(t *testing.T) {
	ta := newTestApp(t, nil, nil)
	ta.configs.On("InvalidateCache", mock.Anything).Return(nil).Once()

	status, _ := ta.do(t, http.MethodPost, "/api/admin/settings/invalidate", token(t, "root", models.RoleAdmin), "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, ta.settings.calls)
	ta.configs.AssertExpectations(t)
}

func TestAdminEndpoints_RequireAdmin(t *testing.T) {
	ta := newTestApp(t, nil, nil)

	status, _ := ta.do(t, http.MethodPost, "/api/admin/settings/invalidate", token(t, "desk-1", models.RoleServiceCenter), "")

	assert.Equal(t, http.StatusForbidden, status)
	assert.Zero(t, ta.settings.calls)
}

func TestAdminPutSetting(t *testing.T) {
	ta := newTestApp(t, nil, nil)
	ta.configs.On("UpsertSetting", mock.Anything, mock.MatchedBy(func(s *models.Setting) bool {
		return s.Key == "transfer.default_max_amount" && s.Value == "75" && s.Category == "transfer"
	})).Return(nil).Once()

	status, _ := ta.do(t, http.MethodPut, "/api/admin/settings", token(t, "root", models.RoleAdmin),
		`{"category":"transfer","key":"transfer.default_max_amount","value":"75"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, ta.settings.calls)
	ta.configs.AssertExpectations(t)

	status, _ = ta.do(t, http.MethodPut, "/api/admin/settings", token(t, "root", models.RoleAdmin), `{"key":" "}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminReloadRules(t *testing.T) {
	ta := newTestApp(t, nil, nil)
	ta.configs.On("InvalidateCache", mock.Anything).Return(nil)
	status, _ := ta.do(t, http.MethodPost, "/api/admin/rules/reload", token(t, "root", models.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, status)

	failing := newTestApp(t, errors.New("db down"), nil)
	failing.configs.On("InvalidateCache", mock.Anything).Return(nil)
	status, body := failing.do(t, http.MethodPost, "/api/admin/rules/reload", token(t, "root", models.RoleAdmin), "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body["error"], "previous rules kept")
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestApp(t, nil, map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return nil }),
	})
	status, body := healthy.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	degraded := newTestApp(t, nil, map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(context.Context) error { return nil }),
		"redis":    handlers.PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	status, body = degraded.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
	services := body["services"].(map[string]interface{})
	assert.Equal(t, "connected", services["database"])
	assert.Equal(t, "connection refused", services["redis"])
}
