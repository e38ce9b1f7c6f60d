package workflow

import (
	"context"
	"fmt"
	"iter"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"estatechain/server/internal/models"
)

// PurchaseResult is the outcome of a confirmed purchase.
type PurchaseResult struct {
	PropertyID uint64          `json:"property_id"`
	PricePaid  *big.Int        `json:"price_paid"`
	Receipt    *models.Receipt `json:"receipt"`
}

// PropertyIDs yields 1..count. The sequence can be ranged over repeatedly.
func PropertyIDs(count uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for id := uint64(1); id <= count; id++ {
			if !yield(id) {
				return
			}
		}
	}
}

// ListProperties returns the identifiers of all tokenized properties and
// their count as reported by the registry.
func (o *Orchestrator) ListProperties(ctx context.Context) (iter.Seq[uint64], uint64, error) {
	count, err := o.gateway.TotalSupply(ctx)
	if err != nil {
		o.logger.WithError(err).Error("Failed to read total supply")
		return nil, 0, fmt.Errorf("failed to list properties: %w", err)
	}
	return PropertyIDs(count), count, nil
}

// GetPropertyDetails reads propertyID from the registry.
func (o *Orchestrator) GetPropertyDetails(ctx context.Context, propertyID uint64) (*models.Property, error) {
	if propertyID == 0 {
		return nil, fmt.Errorf("%w: id 0", models.ErrNotFound)
	}
	property, err := o.gateway.ViewProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return property, nil
}

// BuyProperty pays the current price of propertyID from rc.Account and waits
// for confirmation.
//
// The price is read and then paid in two separate steps. If the seller changes
// the price in between, the marketplace decides whether the payment is
// accepted.
func (o *Orchestrator) BuyProperty(ctx context.Context, rc models.RequestContext, propertyID uint64) (*PurchaseResult, error) {
	pending, err := o.SubmitPurchase(ctx, rc, propertyID)
	if err != nil {
		o.metrics.ObserveOperation(OpBuy, err)
		return nil, err
	}
	result, err := pending.Wait(ctx)
	o.metrics.ObserveOperation(OpBuy, err)
	return result, err
}

// SubmitPurchase reads the price, submits the payment and returns without
// waiting for the receipt.
func (o *Orchestrator) SubmitPurchase(ctx context.Context, rc models.RequestContext, propertyID uint64) (*Confirmation[*PurchaseResult], error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	property, err := o.GetPropertyDetails(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrPurchaseFailed, err)
	}
	if property.Price == nil {
		return nil, fmt.Errorf("%w: property %d has no price", models.ErrPurchaseFailed, propertyID)
	}
	price := new(big.Int).Set(property.Price)

	logger := o.requestLogger(rc, OpBuy).WithField("property_id", propertyID)
	hash, err := o.gateway.BuyProperty(ctx, rc.Account, propertyID, price)
	if err != nil {
		logger.WithError(err).Error("Failed to submit purchase")
		return nil, fmt.Errorf("%w: %w", models.ErrPurchaseFailed, err)
	}
	logger.WithField("tx_hash", hash.Hex()).Info("Purchase submitted")

	return confirm(ctx, o, OpBuy, models.ErrPurchaseFailed, hash, func(receipt *types.Receipt) (*PurchaseResult, error) {
		event := models.NewPropertyEvent(rc, models.StageSold, propertyID, receipt.TxHash)
		event.Price = price
		event.PropertyType = property.PropertyType
		event.Location = property.Location
		event.MetadataURI = property.TokenURI
		o.publish(event)

		logger.WithField("price", price.String()).Info("Property sold")
		return &PurchaseResult{PropertyID: propertyID, PricePaid: price, Receipt: models.NewReceipt(receipt)}, nil
	}), nil
}
