package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// Property mirrors the registry's view of a tokenized property. The chain holds
// the authoritative copy.
type Property struct {
	ID            uint64         `json:"id"`
	Description   string         `json:"description"`
	Location      string         `json:"location"`
	Price         *big.Int       `json:"price"`
	TokenURI      string         `json:"token_uri"`
	PropertyType  PropertyType   `json:"property_type"`
	BuildingType  BuildingType   `json:"building_type"`
	Storeys       uint64         `json:"storeys"`
	LandSize      uint64         `json:"land_size"`
	PropertyTaxes uint64         `json:"property_taxes"`
	ParkingType   ParkingType    `json:"parking_type"`
	Verified      bool           `json:"verified"`
	Owner         common.Address `json:"owner"`
}

// RegistrationForm is the raw seller input before validation.
type RegistrationForm struct {
	Description   string `form:"description" json:"description"`
	Location      string `form:"location" json:"location"`
	Price         string `form:"price" json:"price"`
	PropertyType  string `form:"property_type" json:"property_type"`
	BuildingType  string `form:"building_type" json:"building_type"`
	Storeys       string `form:"storeys" json:"storeys"`
	LandSize      string `form:"land_size" json:"land_size"`
	PropertyTaxes string `form:"property_taxes" json:"property_taxes"`
	ParkingType   string `form:"parking_type" json:"parking_type"`
}

// MintRequest holds the parsed arguments of the registry's mint call.
type MintRequest struct {
	PropertyID    uint64
	Description   string
	Location      string
	Price         *big.Int
	TokenURI      string
	PropertyType  PropertyType
	BuildingType  BuildingType
	Storeys       uint64
	LandSize      uint64
	PropertyTaxes uint64
	ParkingType   ParkingType
}

// TokenMetadata is the document pinned next to the image and referenced by the
// token URI.
type TokenMetadata struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// PinResult holds the two content addresses produced for one registration.
type PinResult struct {
	ImageCID    string `json:"image_cid"`
	MetadataCID string `json:"metadata_cid"`
}

// RequestContext identifies who is acting. It replaces any session-wide
// "current account" and is passed into every workflow call.
type RequestContext struct {
	Account   common.Address
	RequestID string
}

// NewRequestContext returns a context for account with a fresh request id.
func NewRequestContext(account common.Address) RequestContext {
	return RequestContext{Account: account, RequestID: uuid.NewString()}
}

// Validate rejects a missing account before any network call is made.
func (rc RequestContext) Validate() error {
	if rc.Account == (common.Address{}) {
		return NewValidationError("account", "an account is required")
	}
	return nil
}

// Receipt is the user-facing summary of a mined transaction.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockHash   common.Hash `json:"block_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Status      uint64      `json:"status"`
}

// NewReceipt converts a go-ethereum receipt. It returns nil for a nil receipt.
func NewReceipt(r *types.Receipt) *Receipt {
	if r == nil {
		return nil
	}
	receipt := &Receipt{
		TxHash:    r.TxHash,
		BlockHash: r.BlockHash,
		GasUsed:   r.GasUsed,
		Status:    r.Status,
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.Uint64()
	}
	return receipt
}
