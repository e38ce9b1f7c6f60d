package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"estatechain/server/internal/database"
	"estatechain/server/internal/models"
	"estatechain/server/internal/pinning"
)

const defaultAPIBase = "https://api.telegram.org"

// History exposes previously recorded transitions of a property.
type History interface {
	GetTransitions(propertyID uint64) ([]database.TransitionRecord, error)
}

type Service struct {
	mu          sync.RWMutex
	logger      *logrus.Logger
	client      *http.Client
	config      *models.TelegramConfig
	filters     *models.NotificationFilters
	history     History
	apiBase     string
	gatewayHost string
}

func NewService(logger *logrus.Logger, gatewayHost string) *Service {
	return &Service{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		config:      &models.TelegramConfig{},
		apiBase:     defaultAPIBase,
		gatewayHost: gatewayHost,
	}
}

func (s *Service) UpdateConfig(config *models.TelegramConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// Config returns a copy of the active configuration.
func (s *Service) Config() models.TelegramConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.config
}

func (s *Service) SetFilters(filters *models.NotificationFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = filters
}

func (s *Service) SetHistory(history History) {
	s.history = history
}

// SetAPIBase points the service at a different Bot API host.
func (s *Service) SetAPIBase(base string) {
	s.apiBase = strings.TrimRight(base, "/")
}

// getSaleAnalysis compares a sale with the previous one recorded for the property
func (s *Service) getSaleAnalysis(event *models.PropertyEvent) (string, error) {
	if s.history == nil {
		return "", errors.New("history not initialized")
	}

	transitions, err := s.history.GetTransitions(event.PropertyID)
	if err != nil {
		return "", err
	}

	var previous *big.Int
	for _, t := range transitions {
		if t.Stage != models.StageSold || t.ID == event.ID.String() || t.Price == "" {
			continue
		}
		if price, ok := new(big.Int).SetString(t.Price, 10); ok {
			previous = price
		}
	}

	if previous == nil || event.Price == nil {
		return "First recorded sale", nil
	}
	if previous.Sign() == 0 {
		return fmt.Sprintf("Previously sold for %s", previous), nil
	}

	diff := new(big.Float).Quo(
		new(big.Float).SetInt(new(big.Int).Sub(event.Price, previous)),
		new(big.Float).SetInt(previous),
	)
	pct, _ := diff.Float64()
	pct *= 100

	switch {
	case pct <= -1:
		return fmt.Sprintf("%.1f%% below previous sale (%s)", -pct, previous), nil
	case pct >= 1:
		return fmt.Sprintf("%.1f%% above previous sale (%s)", pct, previous), nil
	default:
		return fmt.Sprintf("Same as previous sale (%s)", previous), nil
	}
}

// SendMessage sends a message to the configured Telegram chat
func (s *Service) SendMessage(message string) error {
	config := s.Config()
	return s.send(&config, message)
}

func (s *Service) send(config *models.TelegramConfig, message string) error {
	if !config.IsEnabled {
		return nil
	}

	if config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}

	if config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// NotifyEvent announces registrations and sales that pass the filters.
// Other stages are ignored.
func (s *Service) NotifyEvent(event models.PropertyEvent) error {
	s.mu.RLock()
	enabled, filters := s.config.IsEnabled, s.filters
	s.mu.RUnlock()

	if !enabled {
		return nil
	}
	if event.Stage != models.StageRegistered && event.Stage != models.StageSold {
		return nil
	}
	if !filters.IsEventAllowed(&event) {
		s.logger.WithFields(logrus.Fields{
			"property_id": event.PropertyID,
			"stage":       event.Stage.String(),
		}).Debug("Event filtered out of notifications")
		return nil
	}

	return s.SendMessage(s.formatMessage(&event))
}

func (s *Service) formatMessage(event *models.PropertyEvent) string {
	title := "<b>New Property Tokenized!</b>"
	if event.Stage == models.StageSold {
		title = "<b>🔑 Property Sold!</b>"
	}

	price := "N/A"
	if event.Price != nil {
		price = event.Price.String()
	}

	location := event.Location
	if location == "" {
		location = "Unknown location"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "🏠 Property #%d (%s)\n", event.PropertyID, event.PropertyType)
	fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(location))
	fmt.Fprintf(&b, "💰 %s\n", price)

	if event.Stage == models.StageSold {
		fmt.Fprintf(&b, "👤 Buyer: <code>%s</code>\n", event.Account.Hex())
		analysis, err := s.getSaleAnalysis(event)
		if err != nil {
			s.logger.WithError(err).Error("Failed to get sale analysis")
			analysis = "N/A"
		}
		fmt.Fprintf(&b, "📊 %s\n", analysis)
	} else if event.TokenID != 0 {
		fmt.Fprintf(&b, "🪙 Token #%d\n", event.TokenID)
	}

	fmt.Fprintf(&b, "🧾 <code>%s</code>", event.TxHash.Hex())
	if event.MetadataURI != "" && s.gatewayHost != "" {
		fmt.Fprintf(&b, "\n\n🔗 <a href=\"%s\">View metadata</a>", pinning.GatewayLink(s.gatewayHost, event.MetadataURI))
	}

	return b.String()
}

// SendTest sends a test message using config without adopting it.
func (s *Service) SendTest(config *models.TelegramConfig) error {
	candidate := &models.TelegramConfig{
		IsEnabled: true,
		BotToken:  config.BotToken,
		ChatID:    config.ChatID,
	}
	return s.send(candidate, "🔔 Test notification from EstateChain\n\nIf you see this message, your Telegram configuration is working correctly!")
}

// NotifySample sends a sample registration through the active configuration.
func (s *Service) NotifySample() error {
	sample := models.PropertyEvent{
		PropertyID:   1,
		TokenID:      1,
		Stage:        models.StageRegistered,
		Price:        big.NewInt(450000),
		PropertyType: models.PropertyTypeResidential,
		Location:     "Test Street 123",
		MetadataURI:  "ipfs://QmSample",
	}
	return s.SendMessage(s.formatMessage(&sample))
}
