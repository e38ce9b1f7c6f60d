package models

import "math/big"

// TelegramConfig stores the bot credentials and basic settings
type TelegramConfig struct {
	IsEnabled bool   `json:"is_enabled"`
	BotToken  string `json:"bot_token"`
	ChatID    string `json:"chat_id"`
}

// NotificationFilters restricts which property events produce a message
type NotificationFilters struct {
	MinPrice      *big.Int       `json:"min_price"`
	MaxPrice      *big.Int       `json:"max_price"`
	PropertyTypes []PropertyType `json:"property_types"`
}

// IsEventAllowed checks if an event matches the filter criteria
func (f *NotificationFilters) IsEventAllowed(event *PropertyEvent) bool {
	if f == nil {
		return true // No filters means allow all
	}

	// Price bounds need a price to compare against
	if f.MinPrice != nil || f.MaxPrice != nil {
		if event.Price == nil {
			return false
		}
		if f.MinPrice != nil && event.Price.Cmp(f.MinPrice) < 0 {
			return false
		}
		if f.MaxPrice != nil && event.Price.Cmp(f.MaxPrice) > 0 {
			return false
		}
	}

	if len(f.PropertyTypes) > 0 {
		allowed := false
		for _, t := range f.PropertyTypes {
			if t == event.PropertyType {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return true
}

// TelegramConfigRequest is the body of a configuration update
type TelegramConfigRequest struct {
	BotToken  string `json:"bot_token"`
	ChatID    string `json:"chat_id"`
	IsEnabled bool   `json:"is_enabled"`
}
