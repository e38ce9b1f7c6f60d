package workflow

import (
	"context"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"estatechain/server/internal/metrics"
	"estatechain/server/internal/models"
)

const (
	DefaultVerifyGasLimit = 1_000_000
	DefaultMintGasLimit   = 1_000_000
	DefaultReceiptTimeout = 2 * time.Minute
)

// Operation names used in logs and metrics.
const (
	OpAdd      = "add"
	OpVerify   = "verify"
	OpRegister = "register"
	OpBuy      = "buy"
)

// Gateway is the contract suite as seen by the workflow.
type Gateway interface {
	AddProperty(ctx context.Context, from common.Address, deed string) (common.Hash, error)
	VerifyProperty(ctx context.Context, from common.Address, propertyID uint64, gas uint64) (common.Hash, error)
	CreateDetailedToken(ctx context.Context, from common.Address, req models.MintRequest, gas uint64) (common.Hash, error)
	BuyProperty(ctx context.Context, from common.Address, propertyID uint64, value *big.Int) (common.Hash, error)
	ViewProperty(ctx context.Context, propertyID uint64) (*models.Property, error)
	TotalSupply(ctx context.Context) (uint64, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	AddedPropertyID(receipt *types.Receipt) (uint64, error)
	MintedTokenID(receipt *types.Receipt) (uint64, bool)
}

// Pinner stores artifacts in a content-addressed store.
type Pinner interface {
	PinBytes(ctx context.Context, name string, content []byte) (string, error)
	PinDocument(ctx context.Context, name string, doc interface{}) (string, error)
}

// EventPublisher receives every confirmed transition.
type EventPublisher interface {
	Push(event models.PropertyEvent) error
}

// Options tune an Orchestrator. Zero values fall back to defaults.
type Options struct {
	VerifyGasLimit uint64
	MintGasLimit   uint64
	ReceiptTimeout time.Duration
	Events         EventPublisher
	Metrics        *metrics.Metrics
	Logger         *logrus.Logger
}

// Orchestrator sequences the seller and buyer flows over the contract suite
// and the pinning service. It holds no per-user state; the acting account is
// passed in with every call.
type Orchestrator struct {
	gateway        Gateway
	pinner         Pinner
	events         EventPublisher
	metrics        *metrics.Metrics
	logger         *logrus.Logger
	verifyGas      uint64
	mintGas        uint64
	receiptTimeout time.Duration
}

// New creates an Orchestrator.
func New(gateway Gateway, pinner Pinner, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	o := &Orchestrator{
		gateway:        gateway,
		pinner:         pinner,
		events:         opts.Events,
		metrics:        opts.Metrics,
		logger:         logger,
		verifyGas:      opts.VerifyGasLimit,
		mintGas:        opts.MintGasLimit,
		receiptTimeout: opts.ReceiptTimeout,
	}
	if o.verifyGas == 0 {
		o.verifyGas = DefaultVerifyGasLimit
	}
	if o.mintGas == 0 {
		o.mintGas = DefaultMintGasLimit
	}
	if o.receiptTimeout <= 0 {
		o.receiptTimeout = DefaultReceiptTimeout
	}
	return o
}

func (o *Orchestrator) publish(event models.PropertyEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.Push(event); err != nil {
		o.metrics.IncrementDropped()
		o.logger.WithError(err).WithFields(logrus.Fields{
			"property_id": event.PropertyID,
			"stage":       event.Stage.String(),
		}).Warn("Dropped property event")
	}
}

func (o *Orchestrator) requestLogger(rc models.RequestContext, op string) *logrus.Entry {
	return o.logger.WithFields(logrus.Fields{
		"request_id": rc.RequestID,
		"account":    rc.Account.Hex(),
		"operation":  op,
	})
}
