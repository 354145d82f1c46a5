// Package telegram adapts the Telegram Bot API to the transport-neutral
// gateway port. Only private-chat traffic is surfaced: the bot is a direct
// conversation tool, so chat id and user id always coincide here.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/fleetops/fleetbot/internal/core/ports"
)

const pollTimeoutSeconds = 30

// Gateway implements ports.Gateway over long polling.
type Gateway struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

func New(token string, log zerolog.Logger) (*Gateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	log.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return &Gateway{bot: bot, log: log}, nil
}

// Updates starts long polling and returns a channel of mapped updates. The
// channel closes when ctx is cancelled.
func (g *Gateway) Updates(ctx context.Context) <-chan ports.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	raw := g.bot.GetUpdatesChan(cfg)

	out := make(chan ports.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				g.bot.StopReceivingUpdates()
				return
			case u, ok := <-raw:
				if !ok {
					return
				}
				mapped, ok := mapUpdate(u)
				if !ok {
					continue
				}
				select {
				case out <- mapped:
				case <-ctx.Done():
					g.bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// mapUpdate converts a raw Telegram update into the neutral representation,
// skipping anything that is neither a private text message nor a button press.
func mapUpdate(u tgbotapi.Update) (ports.Update, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil && u.Message.Chat.IsPrivate():
		return ports.Update{
			ChatID:    u.Message.Chat.ID,
			UserID:    u.Message.From.ID,
			FullName:  fullName(u.Message.From),
			Text:      u.Message.Text,
			MessageID: u.Message.MessageID,
		}, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		cq := u.CallbackQuery
		return ports.Update{
			ChatID:     cq.Message.Chat.ID,
			UserID:     cq.From.ID,
			FullName:   fullName(cq.From),
			Callback:   cq.Data,
			CallbackID: cq.ID,
			MessageID:  cq.Message.MessageID,
		}, true
	}
	return ports.Update{}, false
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// SendText delivers a plain text message. The Bot API client carries no
// context support; ctx is accepted to satisfy the port.
func (g *Gateway) SendText(_ context.Context, chatID int64, text string) error {
	_, err := g.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return fmt.Errorf("send text to %d: %w", chatID, err)
	}
	return nil
}

// SendChoices delivers text with rows of inline buttons attached.
func (g *Gateway) SendChoices(_ context.Context, chatID int64, text string, rows [][]ports.Choice) error {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		keyboard = append(keyboard, buttons)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	if _, err := g.bot.Send(msg); err != nil {
		return fmt.Errorf("send choices to %d: %w", chatID, err)
	}
	return nil
}

// AckCallback acknowledges a button press so the client stops its spinner;
// a non-empty note is flashed to the user.
func (g *Gateway) AckCallback(_ context.Context, callbackID string, note string) error {
	if _, err := g.bot.Request(tgbotapi.NewCallback(callbackID, note)); err != nil {
		return fmt.Errorf("ack callback: %w", err)
	}
	return nil
}

// ClearChoices removes the buttons from a previously sent message so a
// handled action cannot be pressed twice.
func (g *Gateway) ClearChoices(_ context.Context, chatID int64, messageID int) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := g.bot.Request(edit); err != nil {
		return fmt.Errorf("clear choices: %w", err)
	}
	return nil
}
