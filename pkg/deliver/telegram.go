package deliver

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/orbiterhq/orbiter-go/pkg/config"
)

// TelegramSender delivers notifications over Telegram.
type TelegramSender struct {
	Config *config.TelegramConfig
	bot    *tgbotapi.BotAPI
}

// NewTelegramSender authorizes the bot and returns a sender.
func NewTelegramSender(cfg *config.TelegramConfig) (*TelegramSender, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token not configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	log.Printf("Telegram bot authorized on account %s", bot.Self.UserName)
	return &TelegramSender{Config: cfg, bot: bot}, nil
}

func (s *TelegramSender) Name() string {
	return "telegram"
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %s", msg.ChatID)
	}
	if msg.Content == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	reply := tgbotapi.NewMessage(chatID, msg.Content)
	_, err = s.bot.Send(reply)
	return err
}
