package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"estatechain/server/internal/models"
)

const telegramConfigID = 1

type telegramConfigRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	IsEnabled bool      `gorm:"column:is_enabled"`
	BotToken  string    `gorm:"column:bot_token"`
	ChatID    string    `gorm:"column:chat_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (telegramConfigRecord) TableName() string { return "telegram_config" }

// GetTelegramConfig returns the saved notifier settings, or nil when none
// have been saved yet.
func (d *Database) GetTelegramConfig() (*models.TelegramConfig, error) {
	var record telegramConfigRecord
	err := d.gorm.Where("id = ?", telegramConfigID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load telegram config: %w", err)
	}

	return &models.TelegramConfig{
		IsEnabled: record.IsEnabled,
		BotToken:  record.BotToken,
		ChatID:    record.ChatID,
	}, nil
}

// UpdateTelegramConfig saves the notifier settings, replacing any earlier ones.
func (d *Database) UpdateTelegramConfig(config *models.TelegramConfigRequest) error {
	now := time.Now().UTC()
	record := telegramConfigRecord{
		ID:        telegramConfigID,
		IsEnabled: config.IsEnabled,
		BotToken:  config.BotToken,
		ChatID:    config.ChatID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_enabled", "bot_token", "chat_id", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save telegram config: %w", err)
	}
	return nil
}
