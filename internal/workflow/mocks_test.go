package workflow

import (
	"context"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"estatechain/server/internal/models"
)

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) AddProperty(ctx context.Context, from common.Address, deed string) (common.Hash, error) {
	args := m.Called(ctx, from, deed)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockGateway) VerifyProperty(ctx context.Context, from common.Address, propertyID uint64, gas uint64) (common.Hash, error) {
	args := m.Called(ctx, from, propertyID, gas)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockGateway) CreateDetailedToken(ctx context.Context, from common.Address, req models.MintRequest, gas uint64) (common.Hash, error) {
	args := m.Called(ctx, from, req, gas)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockGateway) BuyProperty(ctx context.Context, from common.Address, propertyID uint64, value *big.Int) (common.Hash, error) {
	args := m.Called(ctx, from, propertyID, value)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockGateway) ViewProperty(ctx context.Context, propertyID uint64) (*models.Property, error) {
	args := m.Called(ctx, propertyID)
	property, _ := args.Get(0).(*models.Property)
	return property, args.Error(1)
}

func (m *MockGateway) TotalSupply(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockGateway) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, hash)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

func (m *MockGateway) AddedPropertyID(receipt *types.Receipt) (uint64, error) {
	args := m.Called(receipt)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockGateway) MintedTokenID(receipt *types.Receipt) (uint64, bool) {
	args := m.Called(receipt)
	return args.Get(0).(uint64), args.Bool(1)
}

// MockPinner is a mock implementation of Pinner
type MockPinner struct {
	mock.Mock
}

func (m *MockPinner) PinBytes(ctx context.Context, name string, content []byte) (string, error) {
	args := m.Called(ctx, name, content)
	return args.String(0), args.Error(1)
}

func (m *MockPinner) PinDocument(ctx context.Context, name string, doc interface{}) (string, error) {
	args := m.Called(ctx, name, doc)
	return args.String(0), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PropertyEvent
	err    error
}

func (p *recordingPublisher) Push(event models.PropertyEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []models.PropertyEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PropertyEvent(nil), p.events...)
}

var (
	sellerA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	buyerB  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type fixture struct {
	gateway   *MockGateway
	pinner    *MockPinner
	publisher *recordingPublisher
	orch      *Orchestrator
}

func newFixture() *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		gateway:   new(MockGateway),
		pinner:    new(MockPinner),
		publisher: &recordingPublisher{},
	}
	f.orch = New(f.gateway, f.pinner, Options{Events: f.publisher, Logger: logger})
	return f
}

func minedReceipt(hash common.Hash) *types.Receipt {
	return &types.Receipt{
		TxHash:      hash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(7),
		GasUsed:     21000,
	}
}
