package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Stage is the client-observed lifecycle position of a property. Stages only
// move forward.
type Stage uint8

const (
	StageUnknown Stage = iota
	StageAdded
	StageVerified
	StageRegistered
	StageSold
)

var stageNames = []string{"unknown", "added", "verified", "registered", "sold"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range stageNames {
		if n == name {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(text))
}

// Follows reports whether moving from prev to s is a forward transition.
func (s Stage) Follows(prev Stage) bool {
	return s > prev
}

// PropertyEvent records one confirmed on-chain transition.
type PropertyEvent struct {
	ID           uuid.UUID      `json:"id"`
	RequestID    string         `json:"request_id,omitempty"`
	PropertyID   uint64         `json:"property_id"`
	TokenID      uint64         `json:"token_id,omitempty"`
	Stage        Stage          `json:"stage"`
	Account      common.Address `json:"account"`
	TxHash       common.Hash    `json:"tx_hash"`
	Price        *big.Int       `json:"price,omitempty"`
	PropertyType PropertyType   `json:"property_type"`
	Location     string         `json:"location,omitempty"`
	MetadataURI  string         `json:"metadata_uri,omitempty"`
	ImageCID     string         `json:"image_cid,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// NewPropertyEvent stamps a new event with an id and the current time.
func NewPropertyEvent(rc RequestContext, stage Stage, propertyID uint64, txHash common.Hash) PropertyEvent {
	return PropertyEvent{
		ID:         uuid.New(),
		RequestID:  rc.RequestID,
		PropertyID: propertyID,
		Stage:      stage,
		Account:    rc.Account,
		TxHash:     txHash,
		OccurredAt: time.Now().UTC(),
	}
}
