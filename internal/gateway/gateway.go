package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"movie-relay/internal/agent"
	"movie-relay/internal/httpapi"
	"movie-relay/internal/menu"
	"movie-relay/internal/token"
	"movie-relay/pkg/types"
)

// Gateway consumes updates from the control surface and dispatches each
// accepted event onto its own goroutine: plain private text becomes a
// discovery run, a menu callback becomes a selection replay. The remote
// search channel serializes itself; concurrency here is per user event.

// Bot is the slice of the Bot API client the gateway needs. Satisfied by
// *tgbotapi.BotAPI.
type Bot interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Runner is the slice of the agent the gateway needs.
type Runner interface {
	Discover(ctx context.Context, query string) ([]types.Classified, int, error)
	Replay(ctx context.Context, query string, targetPage, targetIndex int, deliverTo int64) error
}

type Deps struct {
	Bot   Bot
	Agent Runner
	Menus *menu.Tracker
	Stats *httpapi.Stats
}

type Gateway struct {
	d Deps
}

func New(d Deps) *Gateway { return &Gateway{d: d} }

// Lines the bot itself produces; a user message starting with one of these
// is our own status text echoed back, not a query. Anti-loop guard.
var statusPrefixes = []string{
	"i found the following",
	"sorry, no results",
	"an error occurred",
	"fetching",
	"discovering movies for",
}

// Run long-polls for updates until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := g.d.Bot.GetUpdates(u)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[gateway] poll failed: %v", err)
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= u.Offset {
				u.Offset = upd.UpdateID + 1
			}
			g.dispatch(ctx, upd)
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		go g.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && IsQuery(u.Message):
		go g.runDiscovery(ctx, u.Message)
	}
}

// IsQuery decides whether an incoming message is a discovery query: plain
// non-empty private text that is not a command, not a reply, not forwarded,
// carries no media, was not sent via or by a bot, and is not one of our own
// status lines.
func IsQuery(m *tgbotapi.Message) bool {
	if m.Chat == nil || !m.Chat.IsPrivate() {
		return false
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return false
	}
	if strings.HasPrefix(text, "/") {
		return false
	}
	if m.ReplyToMessage != nil {
		return false
	}
	if m.ForwardDate != 0 || m.ViaBot != nil {
		return false
	}
	if m.Document != nil || len(m.Photo) > 0 || m.Video != nil || m.Audio != nil {
		return false
	}
	if m.From != nil && m.From.IsBot {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range statusPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

func (g *Gateway) runDiscovery(ctx context.Context, m *tgbotapi.Message) {
	defer recoverLog("discover")
	g.d.Stats.Discoveries.Add(1)

	query := strings.TrimSpace(m.Text)
	chat := m.Chat.ID
	status := tgbotapi.NewMessage(chat, fmt.Sprintf("Discovering movies for “%s”...", query))
	status.ReplyToMessageID = m.MessageID
	sent, err := g.d.Bot.Send(status)
	if err != nil {
		log.Printf("[discover] cannot post status in chat %d: %v", chat, err)
		return
	}
	statusID := sent.MessageID

	entries, pages, err := g.d.Agent.Discover(ctx, query)
	switch {
	case errors.Is(err, agent.ErrNoResults):
		g.editStatus(chat, statusID, fmt.Sprintf("Sorry, no results for “%s”.", query))
		return
	case err != nil:
		g.d.Stats.Failures.Add(1)
		log.Printf("[discover] %q failed: %v", query, err)
		g.editStatus(chat, statusID, "An error occurred during discovery.")
		return
	}
	g.d.Stats.PagesWalked.Add(int64(pages))

	if len(entries) == 0 {
		g.editStatus(chat, statusID,
			fmt.Sprintf("Searched %d pages, but couldn’t find relevant movies for “%s”.", pages, query))
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(menu.BuildLabel(e), token.Encode(e.Page, e.Index)),
		))
	}

	_, _ = g.d.Bot.Request(tgbotapi.NewDeleteMessage(chat, statusID))
	menuMsg := tgbotapi.NewMessage(chat, "I found the following distinct movies. Please choose one:")
	menuMsg.ReplyToMessageID = m.MessageID
	menuMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	sentMenu, err := g.d.Bot.Send(menuMsg)
	if err != nil {
		log.Printf("[discover] cannot send menu in chat %d: %v", chat, err)
		return
	}
	g.d.Menus.Remember(menu.Menu{ChatID: chat, MessageID: sentMenu.MessageID, Query: query, RequestID: m.MessageID})
	log.Printf("[discover] menu sent with %d options for %q (%d pages)", len(rows), query, pages)
}

func (g *Gateway) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer recoverLog("replay")

	if cb.Message == nil || cb.Message.Chat == nil || !cb.Message.Chat.IsPrivate() {
		g.answer(tgbotapi.NewCallback(cb.ID, ""))
		return
	}
	data := cb.Data
	if !token.Recognized(data) {
		// stray action from some other control; ack and move on
		g.answer(tgbotapi.NewCallback(cb.ID, ""))
		return
	}
	page, index, err := token.Decode(data)
	if err != nil {
		g.answer(tgbotapi.NewCallbackWithAlert(cb.ID, "Invalid selection."))
		return
	}

	chat := cb.Message.Chat.ID
	menuID := cb.Message.MessageID
	query := g.queryFor(cb)
	if query == "" {
		g.answer(tgbotapi.NewCallbackWithAlert(cb.ID, "This menu has expired. Please search again."))
		return
	}

	g.d.Stats.Replays.Add(1)
	chosen := chosenLabel(cb)
	if _, err := g.d.Bot.Send(tgbotapi.NewEditMessageText(chat, menuID, fmt.Sprintf("Fetching “%s”...", chosen))); err != nil {
		g.answer(tgbotapi.NewCallback(cb.ID, fmt.Sprintf("Fetching “%s”...", chosen)))
	}

	deliverTo := chat
	if cb.From != nil {
		deliverTo = cb.From.ID
	}
	err = g.d.Agent.Replay(ctx, query, page, index, deliverTo)
	switch {
	case err == nil:
		g.d.Stats.Deliveries.Add(1)
		g.d.Menus.Forget(chat, menuID)
		_, _ = g.d.Bot.Request(tgbotapi.NewDeleteMessage(chat, menuID))
	case errors.Is(err, agent.ErrStateChanged):
		g.d.Stats.Failures.Add(1)
		log.Printf("[replay] %q page %d index %d: %v", query, page, index, err)
		g.editStatus(chat, menuID, "The results have changed upstream. Please search again.")
	case errors.Is(err, agent.ErrDeliveryTimeout):
		g.d.Stats.Failures.Add(1)
		log.Printf("[replay] %q page %d index %d: %v", query, page, index, err)
		g.editStatus(chat, menuID, "An error occurred during retrieval.")
	default:
		g.d.Stats.Failures.Add(1)
		log.Printf("[replay] %q page %d index %d failed: %v", query, page, index, err)
		g.editStatus(chat, menuID, "An error occurred during retrieval.")
	}
}

// queryFor recovers the search text behind a menu callback: the tracker
// first, then the message the menu replies to (survives restarts).
func (g *Gateway) queryFor(cb *tgbotapi.CallbackQuery) string {
	if m, ok := g.d.Menus.Lookup(cb.Message.Chat.ID, cb.Message.MessageID); ok {
		return m.Query
	}
	if cb.Message.ReplyToMessage != nil {
		return strings.TrimSpace(cb.Message.ReplyToMessage.Text)
	}
	return ""
}

// chosenLabel digs the clicked button's text out of the menu keyboard, for
// a friendlier status line. Falls back to a generic phrase.
func chosenLabel(cb *tgbotapi.CallbackQuery) string {
	if cb.Message.ReplyMarkup != nil {
		for _, row := range cb.Message.ReplyMarkup.InlineKeyboard {
			for _, b := range row {
				if b.CallbackData != nil && *b.CallbackData == cb.Data {
					return b.Text
				}
			}
		}
	}
	return "your selection"
}

func (g *Gateway) editStatus(chat int64, messageID int, text string) {
	if _, err := g.d.Bot.Send(tgbotapi.NewEditMessageText(chat, messageID, text)); err != nil {
		log.Printf("[gateway] status edit failed in chat %d: %v", chat, err)
	}
}

func (g *Gateway) answer(c tgbotapi.CallbackConfig) {
	if _, err := g.d.Bot.Request(c); err != nil {
		log.Printf("[gateway] callback answer failed: %v", err)
	}
}

func recoverLog(tag string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v\n%s", tag, r, debug.Stack())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
