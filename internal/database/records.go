package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"estatechain/server/internal/models"
)

// PropertyRecord is the journal's projection of one property.
type PropertyRecord struct {
	PropertyID   uint64              `gorm:"column:property_id;primaryKey;autoIncrement:false" json:"property_id"`
	TokenID      uint64              `gorm:"column:token_id" json:"token_id,omitempty"`
	Stage        models.Stage        `gorm:"column:stage" json:"stage"`
	Owner        string              `gorm:"column:owner" json:"owner,omitempty"`
	Price        string              `gorm:"column:price" json:"price,omitempty"`
	PropertyType models.PropertyType `gorm:"column:property_type" json:"property_type"`
	Location     string              `gorm:"column:location" json:"location,omitempty"`
	MetadataURI  string              `gorm:"column:metadata_uri" json:"metadata_uri,omitempty"`
	ImageCID     string              `gorm:"column:image_cid" json:"image_cid,omitempty"`
	Verified     bool                `gorm:"column:verified" json:"verified"`
	LastTxHash   string              `gorm:"column:last_tx_hash" json:"last_tx_hash,omitempty"`
	CreatedAt    time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func (PropertyRecord) TableName() string { return "properties" }

// TransitionRecord is one observed transition.
type TransitionRecord struct {
	ID         string       `gorm:"column:id;primaryKey" json:"id"`
	PropertyID uint64       `gorm:"column:property_id" json:"property_id"`
	Stage      models.Stage `gorm:"column:stage" json:"stage"`
	Account    string       `gorm:"column:account" json:"account"`
	TxHash     string       `gorm:"column:tx_hash" json:"tx_hash"`
	RequestID  string       `gorm:"column:request_id" json:"request_id,omitempty"`
	Price      string       `gorm:"column:price" json:"price,omitempty"`
	OccurredAt time.Time    `gorm:"column:occurred_at" json:"occurred_at"`
}

func (TransitionRecord) TableName() string { return "property_transitions" }

// RecordEvent applies event to the projection and appends it to the history.
// An event id already in the history is skipped entirely. An event older than
// the projection's stage is kept in the history but leaves the projection
// untouched.
func RecordEvent(tx *gorm.DB, event models.PropertyEvent) error {
	if event.PropertyID == 0 {
		return fmt.Errorf("event %s has no property id", event.ID)
	}

	var seen int64
	if err := tx.Model(&TransitionRecord{}).Where("id = ?", event.ID.String()).Count(&seen).Error; err != nil {
		return fmt.Errorf("failed to look up transition %s: %w", event.ID, err)
	}
	if seen > 0 {
		return nil
	}

	record, found, err := loadRecord(tx, event.PropertyID)
	if err != nil {
		return err
	}

	if !found || event.Stage >= record.Stage {
		applyEvent(record, event)
		if err := saveRecord(tx, record, found); err != nil {
			return err
		}
	}

	transition := TransitionRecord{
		ID:         event.ID.String(),
		PropertyID: event.PropertyID,
		Stage:      event.Stage,
		Account:    event.Account.Hex(),
		TxHash:     event.TxHash.Hex(),
		RequestID:  event.RequestID,
		OccurredAt: event.OccurredAt,
	}
	if event.Price != nil {
		transition.Price = event.Price.String()
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&transition).Error; err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	return nil
}

func applyEvent(record *PropertyRecord, event models.PropertyEvent) {
	if event.Stage.Follows(record.Stage) {
		record.Stage = event.Stage
		record.LastTxHash = event.TxHash.Hex()
		switch event.Stage {
		case models.StageAdded, models.StageSold:
			record.Owner = event.Account.Hex()
		}
	}
	if record.Owner == "" {
		record.Owner = event.Account.Hex()
	}
	if event.Stage >= models.StageVerified {
		record.Verified = true
	}
	if event.TokenID != 0 {
		record.TokenID = event.TokenID
	}
	if event.Price != nil {
		record.Price = event.Price.String()
	}
	if event.Stage == models.StageRegistered || event.Stage == models.StageSold {
		record.PropertyType = event.PropertyType
	}
	if event.Location != "" {
		record.Location = event.Location
	}
	if event.MetadataURI != "" {
		record.MetadataURI = event.MetadataURI
	}
	if event.ImageCID != "" {
		record.ImageCID = event.ImageCID
	}
}

// ApplySnapshot refreshes the projection from on-chain state. A property
// readable from the registry is at least registered.
func ApplySnapshot(tx *gorm.DB, property models.Property) error {
	record, found, err := loadRecord(tx, property.ID)
	if err != nil {
		return err
	}

	if models.StageRegistered.Follows(record.Stage) {
		record.Stage = models.StageRegistered
	}
	record.Owner = property.Owner.Hex()
	record.Verified = property.Verified
	record.PropertyType = property.PropertyType
	record.Location = property.Location
	if property.Price != nil {
		record.Price = property.Price.String()
	}
	if property.TokenURI != "" {
		record.MetadataURI = property.TokenURI
	}

	return saveRecord(tx, record, found)
}

func loadRecord(tx *gorm.DB, propertyID uint64) (*PropertyRecord, bool, error) {
	var record PropertyRecord
	err := tx.Where("property_id = ?", propertyID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &PropertyRecord{PropertyID: propertyID}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load property %d: %w", propertyID, err)
	}
	return &record, true, nil
}

func saveRecord(tx *gorm.DB, record *PropertyRecord, exists bool) error {
	var err error
	if exists {
		err = tx.Save(record).Error
	} else {
		err = tx.Create(record).Error
	}
	if err != nil {
		return fmt.Errorf("failed to save property %d: %w", record.PropertyID, err)
	}
	return nil
}

// SaveSnapshot applies an on-chain snapshot inside its own transaction.
func (d *Database) SaveSnapshot(property models.Property) error {
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		return ApplySnapshot(tx, property)
	})
}
