package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shehryarbajwa/smiles-flights/internal/ratelimit"
	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

const helpMessage = "👋 ¡Hola! Busco vuelos con millas en Smiles.\n\n" +
	"✈️ Mandame origen, destino y fecha separados por espacios:\n\n" +
	"👉 <code>EZE MAD 25-12</code>\n" +
	"👉 <code>EZE MAD 25/12</code>\n" +
	"👉 <code>EZE MAD 2512</code>\n" +
	"👉 <code>EZE MAD 2025-12-25</code>\n\n" +
	"⏳ Se procesa una búsqueda a la vez."

const notAllowedMessage = "🚫 No estás autorizado para usar este bot."

// Searcher runs one search command
type Searcher interface {
	Run(ctx context.Context, raw string, progress func(string)) (*models.SearchResult, error)
}

// Sender delivers messages to Telegram
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot answers chat commands with search results
type Bot struct {
	sender   Sender
	searcher Searcher
	limiter  *ratelimit.Limiter
	allowed  map[string]bool

	wg sync.WaitGroup
}

// New creates a bot. An empty allowedUsers lets everyone in.
func New(sender Sender, searcher Searcher, limiter *ratelimit.Limiter, allowedUsers []string) *Bot {
	allowed := make(map[string]bool, len(allowedUsers))
	for _, u := range allowedUsers {
		allowed[normalizeUser(u)] = true
	}

	return &Bot{
		sender:   sender,
		searcher: searcher,
		limiter:  limiter,
		allowed:  allowed,
	}
}

// Run handles updates until ctx is done or the channel closes, then waits
// for in-flight handlers. Updates are handled concurrently; the searcher
// decides which of them actually runs.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	log.Println("🚀 Telegram bot listening for messages")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate answers a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !b.isAllowed(msg.From) {
		log.Printf("⚠️ Ignoring chat %d: user not allowed", chatID)
		b.send(chatID, notAllowedMessage)
		return
	}

	if msg.IsCommand() {
		// /start, /help and anything unknown get the same help text
		b.send(chatID, helpMessage)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	key := "chat:" + strconv.FormatInt(chatID, 10)
	if b.limiter != nil && !b.limiter.Allow(key) {
		wait := b.limiter.RetryAfter(key).Round(time.Second)
		b.send(chatID, fmt.Sprintf("⏳ Demasiadas búsquedas. Probá de nuevo en %s.", wait))
		return
	}

	result, err := b.searcher.Run(ctx, text, func(progress string) {
		b.send(chatID, progress)
	})
	if err != nil {
		log.Printf("⚠️ Search from chat %d ended in %s: %v", chatID, result.State, err)
	}

	for _, chunk := range result.Messages {
		b.send(chatID, chunk)
	}
}

func (b *Bot) isAllowed(from *tgbotapi.User) bool {
	if len(b.allowed) == 0 {
		return true
	}
	if from == nil {
		return false
	}
	return b.allowed[normalizeUser(from.UserName)]
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.sender.Send(msg); err != nil {
		log.Printf("❌ Failed to send message to chat %d: %v", chatID, err)
	}
}

func normalizeUser(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}
