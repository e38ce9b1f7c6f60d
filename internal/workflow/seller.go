package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"estatechain/server/internal/models"
	"estatechain/server/internal/pinning"
)

// AddResult is the outcome of a confirmed deed submission.
type AddResult struct {
	PropertyID uint64          `json:"property_id"`
	Receipt    *models.Receipt `json:"receipt"`
}

// VerifyResult is the outcome of a confirmed verification.
type VerifyResult struct {
	PropertyID uint64          `json:"property_id"`
	Verified   bool            `json:"verified"`
	Receipt    *models.Receipt `json:"receipt"`
}

// RegisterResult is the outcome of a confirmed mint.
type RegisterResult struct {
	PropertyID  uint64           `json:"property_id"`
	TokenID     uint64           `json:"token_id"`
	Pins        models.PinResult `json:"pins"`
	MetadataURI string           `json:"metadata_uri"`
	Receipt     *models.Receipt  `json:"receipt"`
}

// AddProperty submits deed content from rc.Account and waits for the
// registry to assign an identifier.
func (o *Orchestrator) AddProperty(ctx context.Context, rc models.RequestContext, deed []byte) (*AddResult, error) {
	result, err := o.addProperty(ctx, rc, deed)
	o.metrics.ObserveOperation(OpAdd, err)
	return result, err
}

func (o *Orchestrator) addProperty(ctx context.Context, rc models.RequestContext, deed []byte) (*AddResult, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	text, err := ValidateDeed(deed)
	if err != nil {
		return nil, err
	}

	logger := o.requestLogger(rc, OpAdd)
	hash, err := o.gateway.AddProperty(ctx, rc.Account, text)
	if err != nil {
		logger.WithError(err).Error("Failed to submit deed")
		return nil, fmt.Errorf("%w: %w", models.ErrSubmissionFailed, err)
	}
	logger.WithField("tx_hash", hash.Hex()).Info("Deed submitted")

	pending := confirm(ctx, o, OpAdd, models.ErrSubmissionFailed, hash, func(receipt *types.Receipt) (*AddResult, error) {
		id, err := o.gateway.AddedPropertyID(receipt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrSubmissionFailed, err)
		}

		o.publish(models.NewPropertyEvent(rc, models.StageAdded, id, receipt.TxHash))
		logger.WithField("property_id", id).Info("Property added")
		return &AddResult{PropertyID: id, Receipt: models.NewReceipt(receipt)}, nil
	})
	return pending.Wait(ctx)
}

// VerifyProperty attests propertyID with the given gas allowance. A zero
// gasLimit uses the configured default.
func (o *Orchestrator) VerifyProperty(ctx context.Context, rc models.RequestContext, propertyID uint64, gasLimit uint64) (*VerifyResult, error) {
	result, err := o.verifyProperty(ctx, rc, propertyID, gasLimit)
	o.metrics.ObserveOperation(OpVerify, err)
	return result, err
}

func (o *Orchestrator) verifyProperty(ctx context.Context, rc models.RequestContext, propertyID uint64, gasLimit uint64) (*VerifyResult, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	if propertyID == 0 {
		return nil, models.NewValidationError("property_id", "must be a positive integer")
	}
	if gasLimit == 0 {
		gasLimit = o.verifyGas
	}

	logger := o.requestLogger(rc, OpVerify).WithField("property_id", propertyID)
	hash, err := o.gateway.VerifyProperty(ctx, rc.Account, propertyID, gasLimit)
	if err != nil {
		logger.WithError(err).Error("Failed to submit verification")
		return nil, fmt.Errorf("%w: %w", models.ErrVerificationFailed, err)
	}

	pending := confirm(ctx, o, OpVerify, models.ErrVerificationFailed, hash, func(receipt *types.Receipt) (*VerifyResult, error) {
		o.publish(models.NewPropertyEvent(rc, models.StageVerified, propertyID, receipt.TxHash))
		logger.WithField("tx_hash", hash.Hex()).Info("Property verified")
		return &VerifyResult{PropertyID: propertyID, Verified: true, Receipt: models.NewReceipt(receipt)}, nil
	})
	return pending.Wait(ctx)
}

// RegisterProperty pins the image and its metadata document, then mints the
// token and waits for confirmation. Nothing is minted unless both pins
// succeed, and every call pins afresh.
func (o *Orchestrator) RegisterProperty(ctx context.Context, rc models.RequestContext, propertyID uint64, form models.RegistrationForm, image []byte) (*RegisterResult, error) {
	pending, err := o.SubmitRegistration(ctx, rc, propertyID, form, image)
	if err != nil {
		o.metrics.ObserveOperation(OpRegister, err)
		return nil, err
	}
	result, err := pending.Wait(ctx)
	o.metrics.ObserveOperation(OpRegister, err)
	return result, err
}

// SubmitRegistration validates and pins synchronously, submits the mint and
// returns without waiting for the receipt.
func (o *Orchestrator) SubmitRegistration(ctx context.Context, rc models.RequestContext, propertyID uint64, form models.RegistrationForm, image []byte) (*Confirmation[*RegisterResult], error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	req, err := ParseRegistration(propertyID, form)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, models.NewValidationError("image", "is required")
	}

	logger := o.requestLogger(rc, OpRegister).WithField("property_id", propertyID)

	pins, err := o.pinArtifacts(ctx, propertyID, image)
	if err != nil {
		logger.WithError(err).Error("Failed to pin artifacts")
		return nil, err
	}
	req.TokenURI = pinning.URI(pins.MetadataCID)

	hash, err := o.gateway.CreateDetailedToken(ctx, rc.Account, req, o.mintGas)
	if err != nil {
		logger.WithError(err).Error("Failed to submit mint")
		return nil, fmt.Errorf("%w: %w", models.ErrMintFailed, err)
	}
	logger.WithFields(logrus.Fields{
		"tx_hash":      hash.Hex(),
		"metadata_uri": req.TokenURI,
	}).Info("Mint submitted")

	return confirm(ctx, o, OpRegister, models.ErrMintFailed, hash, func(receipt *types.Receipt) (*RegisterResult, error) {
		tokenID, ok := o.gateway.MintedTokenID(receipt)
		if !ok {
			tokenID = propertyID
		}

		event := models.NewPropertyEvent(rc, models.StageRegistered, propertyID, receipt.TxHash)
		event.TokenID = tokenID
		event.Price = req.Price
		event.PropertyType = req.PropertyType
		event.Location = req.Location
		event.MetadataURI = req.TokenURI
		event.ImageCID = pins.ImageCID
		o.publish(event)

		logger.WithField("token_id", tokenID).Info("Property registered")
		return &RegisterResult{
			PropertyID:  propertyID,
			TokenID:     tokenID,
			Pins:        pins,
			MetadataURI: req.TokenURI,
			Receipt:     models.NewReceipt(receipt),
		}, nil
	}), nil
}

func (o *Orchestrator) pinArtifacts(ctx context.Context, propertyID uint64, image []byte) (models.PinResult, error) {
	name := strconv.FormatUint(propertyID, 10)

	imageCID, err := o.pinner.PinBytes(ctx, "property-"+name+"-image", image)
	o.metrics.ObservePin("image", err)
	if err != nil {
		return models.PinResult{}, fmt.Errorf("failed to pin image: %w", err)
	}

	doc := models.TokenMetadata{Name: name, Image: imageCID}
	metadataCID, err := o.pinner.PinDocument(ctx, "property-"+name+"-metadata", doc)
	o.metrics.ObservePin("metadata", err)
	if err != nil {
		return models.PinResult{}, fmt.Errorf("failed to pin metadata: %w", err)
	}

	return models.PinResult{ImageCID: imageCID, MetadataCID: metadataCID}, nil
}
