package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatechain/server/internal/models"
)

// GetTelegramConfig returns the current Telegram configuration
func (h *Handler) GetTelegramConfig(c *gin.Context) {
	config := h.telegramService.Config()

	// Don't send the full bot token back to the client for security
	if len(config.BotToken) > 4 {
		config.BotToken = "••••" + config.BotToken[len(config.BotToken)-4:]
	} else if config.BotToken != "" {
		config.BotToken = "••••"
	}
	c.JSON(http.StatusOK, config)
}

// UpdateTelegramConfig saves a new Telegram configuration. Enabling it sends a
// test message first; disabling only stores the settings.
func (h *Handler) UpdateTelegramConfig(c *gin.Context) {
	var request models.TelegramConfigRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithError(err).Error("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if request.IsEnabled {
		// Basic validation
		if len(request.BotToken) < 20 || !strings.Contains(request.BotToken, ":") {
			h.logger.Error("Invalid bot token format")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bot token format. Please check your bot token from @BotFather"})
			return
		}

		if request.ChatID == "" {
			h.logger.Error("Chat ID is required")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Chat ID is required"})
			return
		}

		// Test the Telegram configuration before saving
		if err := h.telegramService.SendTest(&models.TelegramConfig{BotToken: request.BotToken, ChatID: request.ChatID}); err != nil {
			h.logger.WithError(err).Error("Failed to send test message")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		// Keep the stored credentials when only switching off
		current := h.telegramService.Config()
		if request.BotToken == "" {
			request.BotToken = current.BotToken
		}
		if request.ChatID == "" {
			request.ChatID = current.ChatID
		}
	}

	// Save the configuration
	if err := h.settings.UpdateTelegramConfig(&request); err != nil {
		h.logger.WithError(err).Error("Failed to update Telegram config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save configuration to database"})
		return
	}

	h.telegramService.UpdateConfig(&models.TelegramConfig{
		IsEnabled: request.IsEnabled,
		BotToken:  request.BotToken,
		ChatID:    request.ChatID,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Telegram configuration updated successfully"})
}

// TestTelegramConfig sends a sample property notification
func (h *Handler) TestTelegramConfig(c *gin.Context) {
	config := h.telegramService.Config()
	if !config.IsEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Telegram is not configured or is disabled"})
		return
	}

	if err := h.telegramService.NotifySample(); err != nil {
		h.logger.WithError(err).Error("Failed to send test notification")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent successfully"})
}
