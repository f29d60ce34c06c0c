package models

// TelegramConfig stores the bot credentials
type TelegramConfig struct {
	IsEnabled  bool   `json:"is_enabled"`
	BotToken   string `json:"bot_token"`
	ChatID     string `json:"chat_id"`
	APIBaseURL string `json:"-"`
}

// BotStatus is the result of a bot connectivity check
type BotStatus struct {
	OK          bool   `json:"ok"`
	BotUsername string `json:"bot_username,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
	Error       string `json:"error,omitempty"`
}
