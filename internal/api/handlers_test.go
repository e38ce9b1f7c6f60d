package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"estatechain/server/internal/database"
	"estatechain/server/internal/models"
	"estatechain/server/internal/scheduler"
	"estatechain/server/internal/telegram"
	"estatechain/server/internal/workflow"
)

const accountA = "0x00000000000000000000000000000000000000Aa"

type MockWorkflow struct {
	mock.Mock
}

func (m *MockWorkflow) AddProperty(ctx context.Context, rc models.RequestContext, deed []byte) (*workflow.AddResult, error) {
	args := m.Called(ctx, rc, deed)
	result, _ := args.Get(0).(*workflow.AddResult)
	return result, args.Error(1)
}

func (m *MockWorkflow) VerifyProperty(ctx context.Context, rc models.RequestContext, propertyID uint64, gasLimit uint64) (*workflow.VerifyResult, error) {
	args := m.Called(ctx, rc, propertyID, gasLimit)
	result, _ := args.Get(0).(*workflow.VerifyResult)
	return result, args.Error(1)
}

func (m *MockWorkflow) RegisterProperty(ctx context.Context, rc models.RequestContext, propertyID uint64, form models.RegistrationForm, image []byte) (*workflow.RegisterResult, error) {
	args := m.Called(ctx, rc, propertyID, form, image)
	result, _ := args.Get(0).(*workflow.RegisterResult)
	return result, args.Error(1)
}

func (m *MockWorkflow) ListProperties(ctx context.Context) (iter.Seq[uint64], uint64, error) {
	args := m.Called(ctx)
	count := args.Get(0).(uint64)
	return workflow.PropertyIDs(count), count, args.Error(1)
}

func (m *MockWorkflow) GetPropertyDetails(ctx context.Context, propertyID uint64) (*models.Property, error) {
	args := m.Called(ctx, propertyID)
	property, _ := args.Get(0).(*models.Property)
	return property, args.Error(1)
}

func (m *MockWorkflow) BuyProperty(ctx context.Context, rc models.RequestContext, propertyID uint64) (*workflow.PurchaseResult, error) {
	args := m.Called(ctx, rc, propertyID)
	result, _ := args.Get(0).(*workflow.PurchaseResult)
	return result, args.Error(1)
}

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Accounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]common.Address)
	return accounts, args.Error(1)
}

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) GetPropertyRecord(propertyID uint64) (*database.PropertyRecord, error) {
	args := m.Called(propertyID)
	record, _ := args.Get(0).(*database.PropertyRecord)
	return record, args.Error(1)
}

func (m *MockJournal) GetTransitions(propertyID uint64) ([]database.TransitionRecord, error) {
	args := m.Called(propertyID)
	transitions, _ := args.Get(0).([]database.TransitionRecord)
	return transitions, args.Error(1)
}

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) GetTelegramConfig() (*models.TelegramConfig, error) {
	args := m.Called()
	config, _ := args.Get(0).(*models.TelegramConfig)
	return config, args.Error(1)
}

func (m *MockSettings) UpdateTelegramConfig(config *models.TelegramConfigRequest) error {
	args := m.Called(*config)
	return args.Error(0)
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) RunManual(ctx context.Context) (scheduler.SyncResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(scheduler.SyncResult), args.Error(1)
}

type testServer struct {
	router   *gin.Engine
	workflow *MockWorkflow
	accounts *MockAccounts
	journal  *MockJournal
	settings *MockSettings
	syncer   *MockSyncer
	telegram *telegram.Service
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{syncer: new(MockSyncer)}
	ts.build(ts.syncer)
	return ts
}

func (ts *testServer) build(syncer Syncer) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ts.workflow = new(MockWorkflow)
	ts.accounts = new(MockAccounts)
	ts.journal = new(MockJournal)
	ts.settings = new(MockSettings)
	ts.telegram = telegram.NewService(logger, "ipfs.io")

	handler := NewHandler(ts.workflow, ts.accounts, ts.journal, ts.settings, syncer, ts.telegram, "ipfs.io", logger)
	ts.router = NewRouter([]string{"*"}, prometheus.NewRegistry())
	SetupRoutes(ts.router, handler)
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func hasAccount(account string) interface{} {
	return mock.MatchedBy(func(rc models.RequestContext) bool {
		return rc.Account == common.HexToAddress(account) && rc.RequestID != ""
	})
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestGetAccounts(t *testing.T) {
	ts := newTestServer(t)
	ts.accounts.On("Accounts", mock.Anything).Return([]common.Address{common.HexToAddress(accountA)}, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), strings.ToLower(accountA[2:]))
}

func TestGetEnums(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/enums", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["property_types"], 4)
	assert.Len(t, body["building_types"], 5)
	assert.Len(t, body["parking_types"], 4)
}

func TestAddProperty_JSON(t *testing.T) {
	ts := newTestServer(t)
	ts.workflow.On("AddProperty", mock.Anything, hasAccount(accountA), []byte("DEED-123")).
		Return(&workflow.AddResult{PropertyID: 1, Receipt: &models.Receipt{Status: 1}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/properties", strings.NewReader(`{"deed":"DEED-123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAccount, accountA)
	req.Header.Set(HeaderRequestID, "req-1")

	w := ts.do(req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	assert.Equal(t, float64(1), decode(t, w)["property_id"])
}

func TestAddProperty_Multipart(t *testing.T) {
	ts := newTestServer(t)
	ts.workflow.On("AddProperty", mock.Anything, hasAccount(accountA), []byte("deed text")).
		Return(&workflow.AddResult{PropertyID: 2}, nil)

	body, contentType := multipartBody(t, map[string]string{"account": accountA}, "deed", "deed.txt", []byte("deed text"))
	req := httptest.NewRequest(http.MethodPost, "/api/properties", body)
	req.Header.Set("Content-Type", contentType)

	w := ts.do(req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestAddProperty_BadInput(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/properties", strings.NewReader(`{"deed":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAccount, "not-an-address")
	w := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "account", decode(t, w)["field"])

	req = httptest.NewRequest(http.MethodPost, "/api/properties", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAccount, accountA)
	w = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.workflow.AssertNotCalled(t, "AddProperty", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyProperty(t *testing.T) {
	ts := newTestServer(t)
	ts.workflow.On("VerifyProperty", mock.Anything, hasAccount(accountA), uint64(1), uint64(1000000)).
		Return(&workflow.VerifyResult{PropertyID: 1, Verified: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/properties/1/verify?gas_limit=1000000", nil)
	req.Header.Set(HeaderAccount, accountA)

	w := ts.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["verified"])
}

func TestVerifyProperty_InvalidID(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/properties/abc/verify", nil)
	req.Header.Set(HeaderAccount, accountA)
	w := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "property_id", decode(t, w)["field"])
}

func TestRegisterProperty(t *testing.T) {
	ts := newTestServer(t)
	image := []byte{0xff, 0xd8, 0xff}
	form := models.RegistrationForm{
		Description:   "House",
		Location:      "12 Elm Street",
		Price:         "500000",
		PropertyType:  "RESIDENTIAL",
		BuildingType:  "DETACHED",
		Storeys:       "2",
		LandSize:      "1000",
		PropertyTaxes: "3000",
		ParkingType:   "GARAGE",
	}
	ts.workflow.On("RegisterProperty", mock.Anything, hasAccount(accountA), uint64(1), form, image).
		Return(&workflow.RegisterResult{
			PropertyID:  1,
			TokenID:     1,
			Pins:        models.PinResult{ImageCID: "QmImage", MetadataCID: "QmMeta"},
			MetadataURI: "ipfs://QmMeta",
		}, nil)

	body, contentType := multipartBody(t, map[string]string{
		"description":    form.Description,
		"location":       form.Location,
		"price":          form.Price,
		"property_type":  form.PropertyType,
		"building_type":  form.BuildingType,
		"storeys":        form.Storeys,
		"land_size":      form.LandSize,
		"property_taxes": form.PropertyTaxes,
		"parking_type":   form.ParkingType,
	}, "image", "house.jpg", image)
	req := httptest.NewRequest(http.MethodPost, "/api/properties/1/register", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderAccount, accountA)

	w := ts.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decode(t, w)
	assert.Equal(t, "ipfs://QmMeta", result["metadata_uri"])
	links := result["links"].(map[string]interface{})
	assert.Equal(t, "https://ipfs.io/ipfs/QmImage", links["image"])
	assert.Equal(t, "https://ipfs.io/ipfs/QmMeta", links["metadata"])
}

func TestRegisterProperty_MissingImage(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{"price": "1"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/properties/1/register", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderAccount, accountA)

	w := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "image", decode(t, w)["field"])
}

func TestListProperties(t *testing.T) {
	ts := newTestServer(t)
	ts.workflow.On("ListProperties", mock.Anything).Return(uint64(3), nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/properties", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(3)}, body["ids"])
}

func TestGetProperty(t *testing.T) {
	ts := newTestServer(t)
	ts.workflow.On("GetPropertyDetails", mock.Anything, uint64(1)).Return(&models.Property{
		ID:           1,
		Location:     "12 Elm Street",
		Price:        big.NewInt(500000),
		TokenURI:     "ipfs://QmMeta",
		PropertyType: models.PropertyTypeCommercial,
	}, nil)
	ts.workflow.On("GetPropertyDetails", mock.Anything, uint64(999)).
		Return(nil, fmt.Errorf("%w: id 999", models.ErrNotFound))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/properties/1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "https://ipfs.io/ipfs/QmMeta", body["metadata_link"])
	property := body["property"].(map[string]interface{})
	assert.Equal(t, float64(500000), property["price"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/properties/999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuyProperty(t *testing.T) {
	ts := newTestServer(t)
	ts.workflow.On("BuyProperty", mock.Anything, hasAccount(accountA), uint64(1)).
		Return(&workflow.PurchaseResult{PropertyID: 1, PricePaid: big.NewInt(500000), Receipt: &models.Receipt{Status: 1}}, nil).Once()
	ts.workflow.On("BuyProperty", mock.Anything, hasAccount(accountA), uint64(2)).
		Return(nil, fmt.Errorf("%w: %w", models.ErrPurchaseFailed, models.ErrTransactionReverted)).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/properties/1/buy", nil)
	req.Header.Set(HeaderAccount, accountA)
	w := ts.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(500000), decode(t, w)["price_paid"])

	req = httptest.NewRequest(http.MethodPost, "/api/properties/2/buy", nil)
	req.Header.Set(HeaderAccount, accountA)
	w = ts.do(req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBuyProperty_NodeUnreachable(t *testing.T) {
	ts := newTestServer(t)
	cause := fmt.Errorf("failed to send transaction: %w: dial tcp 127.0.0.1:7545: connect: connection refused", models.ErrChainUnavailable)
	ts.workflow.On("BuyProperty", mock.Anything, hasAccount(accountA), uint64(1)).
		Return(nil, fmt.Errorf("%w: %w", models.ErrPurchaseFailed, cause)).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/properties/1/buy", nil)
	req.Header.Set(HeaderAccount, accountA)
	w := ts.do(req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotEmpty(t, decode(t, w)["request_id"])
}

func TestSyncChain(t *testing.T) {
	ts := newTestServer(t)
	ts.syncer.On("RunManual", mock.Anything).Return(scheduler.SyncResult{Total: 3, Synced: 2, Failed: 1}, nil).Once()

	w := ts.do(httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["synced"])
	assert.Equal(t, float64(1), body["failed"])

	ts.syncer.On("RunManual", mock.Anything).Return(scheduler.SyncResult{}, fmt.Errorf("failed to list: %w", models.ErrChainUnavailable)).Once()
	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	ts.syncer.AssertExpectations(t)
}

func TestSyncChain_Disabled(t *testing.T) {
	ts := &testServer{}
	ts.build(nil)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetPropertyHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.journal.On("GetPropertyRecord", uint64(1)).Return(&database.PropertyRecord{PropertyID: 1, Stage: models.StageSold}, nil)
	ts.journal.On("GetTransitions", uint64(1)).Return([]database.TransitionRecord{
		{ID: "a", PropertyID: 1, Stage: models.StageAdded},
		{ID: "b", PropertyID: 1, Stage: models.StageSold},
	}, nil)
	ts.journal.On("GetPropertyRecord", uint64(5)).Return(nil, models.ErrNotFound)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/properties/1/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "sold", body["property"].(map[string]interface{})["stage"])
	assert.Len(t, body["transitions"], 2)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/properties/5/history", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewValidationError("price", "bad"), http.StatusBadRequest},
		{fmt.Errorf("%w: id 9", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: %w", models.ErrMintFailed, models.ErrTransactionReverted), http.StatusConflict},
		{fmt.Errorf("failed to pin image: %w", models.ErrPinningFailed), http.StatusBadGateway},
		{fmt.Errorf("%w: %w", models.ErrPurchaseFailed, models.ErrTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: failed to send transaction: %w", models.ErrPurchaseFailed, models.ErrChainUnavailable), http.StatusBadGateway},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
