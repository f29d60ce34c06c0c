package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/internal/models"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"
	listingURLPrefix  = "https://es.wallapop.com/item/"
	helloMessage      = "👋 Hello! BuscaPisos bot is working!"
)

type Service struct {
	logger *logrus.Logger
	client *http.Client
	config *models.TelegramConfig
}

func NewService(config *models.TelegramConfig, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if config == nil {
		config = &models.TelegramConfig{}
	}
	return &Service{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		config: config,
	}
}

func (s *Service) endpoint(method string) string {
	base := s.config.APIBaseURL
	if base == "" {
		base = defaultAPIBaseURL
	}
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(base, "/"), s.config.BotToken, method)
}

// SendMessage sends an HTML message to the configured chat. It does nothing
// when the bot is disabled.
func (s *Service) SendMessage(ctx context.Context, message string) error {
	if !s.config.IsEnabled {
		return nil
	}

	if s.config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}

	if s.config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	payload := map[string]interface{}{
		"chat_id":    s.config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("sendMessage"), bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build Telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
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

// NotifyNewListing sends the new-listing message for l
func (s *Service) NotifyNewListing(ctx context.Context, l models.Listing) error {
	if !s.config.IsEnabled {
		return nil
	}
	return s.SendMessage(ctx, FormatListing(l))
}

// FormatListing renders the new-listing message. Unknown values print as "?".
func FormatListing(l models.Listing) string {
	title := "Sin título"
	if l.Title != nil {
		title = *l.Title
	}

	price := "?"
	if l.Price != nil {
		price = formatNumber(*l.Price)
	}

	city := ""
	if l.City != nil {
		city = *l.City
	}

	rooms := "?"
	if l.Rooms != nil {
		rooms = strconv.Itoa(*l.Rooms)
	}

	surface := "?"
	if l.Surface != nil {
		surface = formatNumber(*l.Surface)
	}

	return fmt.Sprintf(
		"🏠 <b>New listing!</b>\n\n"+
			"<b>%s</b>\n"+
			"💰 %s€\n"+
			"📍 %s\n"+
			"🛏 %s rooms | 📐 %sm²\n\n"+
			"<a href=\"%s\">View on Wallapop</a>",
		html.EscapeString(title),
		price,
		html.EscapeString(city),
		rooms,
		surface,
		html.EscapeString(ListingURL(l.WebSlug)),
	)
}

// ListingURL is the public page of a listing
func ListingURL(webSlug string) string {
	return listingURLPrefix + webSlug
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TestBot checks the bot token with getMe and sends a hello message
func (s *Service) TestBot(ctx context.Context) models.BotStatus {
	if !s.config.IsEnabled {
		return models.BotStatus{OK: false, Error: "Telegram is not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("getMe"), nil)
	if err != nil {
		return models.BotStatus{OK: false, Error: err.Error()}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.BotStatus{OK: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.BotStatus{OK: false, Error: "Failed to connect to bot"}
	}

	var me struct {
		Result struct {
			Username string `json:"username"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return models.BotStatus{OK: false, Error: fmt.Sprintf("failed to decode getMe response: %v", err)}
	}

	status := models.BotStatus{
		OK:          true,
		BotUsername: me.Result.Username,
		ChatID:      s.config.ChatID,
	}
	if err := s.SendMessage(ctx, helloMessage); err != nil {
		s.logger.WithError(err).Warn("Telegram hello message failed")
		status.OK = false
		status.Error = err.Error()
	}
	return status
}
