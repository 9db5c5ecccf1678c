package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"movie-relay/internal/agent"
	"movie-relay/internal/httpapi"
	"movie-relay/internal/menu"
	"movie-relay/pkg/types"
)

func privateText(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		From:      &tgbotapi.User{ID: 42},
		Text:      text,
	}
}

func TestIsQuery(t *testing.T) {
	tests := []struct {
		name string
		msg  *tgbotapi.Message
		want bool
	}{
		{"plain private text", privateText("Inception"), true},
		{"group chat", &tgbotapi.Message{Chat: &tgbotapi.Chat{Type: "group"}, Text: "Inception"}, false},
		{"empty", privateText(""), false},
		{"whitespace only", privateText("   "), false},
		{"command", privateText("/start"), false},
		{"reply", func() *tgbotapi.Message {
			m := privateText("Inception")
			m.ReplyToMessage = &tgbotapi.Message{MessageID: 1}
			return m
		}(), false},
		{"forwarded", func() *tgbotapi.Message {
			m := privateText("Inception")
			m.ForwardDate = 1700000000
			return m
		}(), false},
		{"with media", func() *tgbotapi.Message {
			m := privateText("Inception")
			m.Document = &tgbotapi.Document{FileID: "f1"}
			return m
		}(), false},
		{"via bot", func() *tgbotapi.Message {
			m := privateText("Inception")
			m.ViaBot = &tgbotapi.User{ID: 9, IsBot: true}
			return m
		}(), false},
		{"from a bot", func() *tgbotapi.Message {
			m := privateText("Inception")
			m.From = &tgbotapi.User{ID: 9, IsBot: true}
			return m
		}(), false},
		{"own status line", privateText("Fetching “Inception”..."), false},
		{"own discovery line", privateText("Discovering movies for “x”..."), false},
		{"own no-results line", privateText("Sorry, no results for “x”."), false},
		{"status prefix mid-sentence is fine", privateText("the fetching of bones"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsQuery(tt.msg))
		})
	}
}

// fakeBot records control-surface calls.
type fakeBot struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMsg
	edits    []string
	deleted  []int
	answers  []string
	failSend bool
}

type sentMsg struct {
	text     string
	keyboard [][]tgbotapi.InlineKeyboardButton
}

func (b *fakeBot) GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	return nil, nil
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		if b.failSend {
			return tgbotapi.Message{}, fmt.Errorf("send refused")
		}
		b.nextID++
		s := sentMsg{text: m.Text}
		if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			s.keyboard = kb.InlineKeyboard
		}
		b.sent = append(b.sent, s)
		return tgbotapi.Message{MessageID: b.nextID}, nil
	case tgbotapi.EditMessageTextConfig:
		b.edits = append(b.edits, m.Text)
		return tgbotapi.Message{MessageID: m.MessageID}, nil
	default:
		return tgbotapi.Message{}, fmt.Errorf("unexpected chattable %T", c)
	}
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.DeleteMessageConfig:
		b.deleted = append(b.deleted, m.MessageID)
	case tgbotapi.CallbackConfig:
		b.answers = append(b.answers, m.Text)
	default:
		return nil, fmt.Errorf("unexpected chattable %T", c)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// fakeRunner scripts the agent.
type fakeRunner struct {
	entries   []types.Classified
	pages     int
	discErr   error
	replayErr error

	replayedQuery string
	replayedPage  int
	replayedIndex int
	replayCalls   int
}

func (r *fakeRunner) Discover(ctx context.Context, query string) ([]types.Classified, int, error) {
	return r.entries, r.pages, r.discErr
}

func (r *fakeRunner) Replay(ctx context.Context, query string, targetPage, targetIndex int, deliverTo int64) error {
	r.replayCalls++
	r.replayedQuery = query
	r.replayedPage = targetPage
	r.replayedIndex = targetIndex
	return r.replayErr
}

func newTestGateway(bot *fakeBot, runner *fakeRunner) (*Gateway, *menu.Tracker) {
	tr := menu.NewTracker(time.Hour, time.Hour, nil)
	g := New(Deps{Bot: bot, Agent: runner, Menus: tr, Stats: httpapi.NewStats()})
	return g, tr
}

func entry(title, quality string, qrank, page, index int) types.Classified {
	return types.Classified{
		Candidate: types.Candidate{Page: page, Index: index},
		Title:     title,
		Quality:   quality,
		QRank:     qrank,
	}
}

func callbackData(b tgbotapi.InlineKeyboardButton) string {
	if b.CallbackData == nil {
		return ""
	}
	return *b.CallbackData
}

func TestRunDiscoverySendsMenu(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{
		entries: []types.Classified{
			entry("Inception", "1080p", 3, 2, 0),
			entry("Inception 2", "720p", 2, 1, 4),
		},
		pages: 2,
	}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.runDiscovery(context.Background(), privateText("Inception"))

	require.Len(t, bot.sent, 2) // status + menu
	require.Contains(t, bot.sent[0].text, "Discovering movies for")
	require.Equal(t, []int{1}, bot.deleted) // status deleted before menu

	m := bot.sent[1]
	require.Contains(t, m.text, "distinct movies")
	require.Len(t, m.keyboard, 2)
	require.Equal(t, "get:2:0", callbackData(m.keyboard[0][0]))
	require.Equal(t, "get:1:4", callbackData(m.keyboard[1][0]))
	require.Contains(t, m.keyboard[0][0].Text, "Inception")

	// the menu is tracked for later callback query recovery
	tracked, ok := tr.Lookup(42, 2)
	require.True(t, ok)
	require.Equal(t, "Inception", tracked.Query)
}

func TestRunDiscoveryNoResults(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{discErr: agent.ErrNoResults}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.runDiscovery(context.Background(), privateText("Nothing Here"))

	require.Len(t, bot.sent, 1)
	require.Len(t, bot.edits, 1)
	require.Contains(t, bot.edits[0], "Sorry, no results")
	require.Empty(t, bot.deleted)
}

func TestRunDiscoveryEmptyAfterFiltering(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{pages: 4}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.runDiscovery(context.Background(), privateText("generic words"))

	require.Len(t, bot.edits, 1)
	require.Contains(t, bot.edits[0], "Searched 4 pages")
}

func TestRunDiscoveryGenericFailure(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{discErr: fmt.Errorf("bridge fell over")}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.runDiscovery(context.Background(), privateText("Inception"))

	require.Len(t, bot.edits, 1)
	require.Equal(t, "An error occurred during discovery.", bot.edits[0])
}

func TestRunDiscoveryStatusSendRefused(t *testing.T) {
	bot := &fakeBot{failSend: true}
	runner := &fakeRunner{entries: []types.Classified{entry("Inception", "1080p", 3, 1, 0)}, pages: 1}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.runDiscovery(context.Background(), privateText("Inception"))

	require.Empty(t, bot.sent)
	require.Empty(t, bot.edits)
}

func menuCallback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 42},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 900,
			Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
			ReplyToMessage: &tgbotapi.Message{
				MessageID: 10,
				Text:      "Inception",
			},
		},
	}
}

func TestHandleCallbackForeignPrefixAckedSilently(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.handleCallback(context.Background(), menuCallback("xyz"))

	require.Equal(t, []string{""}, bot.answers)
	require.Zero(t, runner.replayCalls)
	require.Empty(t, bot.edits)
}

func TestHandleCallbackMalformedToken(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.handleCallback(context.Background(), menuCallback("get:a:b"))

	require.Equal(t, []string{"Invalid selection."}, bot.answers)
	require.Zero(t, runner.replayCalls)
}

func TestHandleCallbackReplaySuccess(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()
	tr.Remember(menu.Menu{ChatID: 42, MessageID: 900, Query: "Inception", RequestID: 10})

	g.handleCallback(context.Background(), menuCallback("get:3:1"))

	require.Equal(t, 1, runner.replayCalls)
	require.Equal(t, "Inception", runner.replayedQuery)
	require.Equal(t, 3, runner.replayedPage)
	require.Equal(t, 1, runner.replayedIndex)
	require.Contains(t, bot.edits[0], "Fetching")
	require.Equal(t, []int{900}, bot.deleted) // menu cleaned up after delivery
	_, ok := tr.Lookup(42, 900)
	require.False(t, ok)
}

func TestHandleCallbackQueryFromReplyFallback(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()
	// tracker does not know this menu (e.g. process restarted)

	g.handleCallback(context.Background(), menuCallback("get:1:0"))

	require.Equal(t, 1, runner.replayCalls)
	require.Equal(t, "Inception", runner.replayedQuery)
}

func TestHandleCallbackMenuExpired(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	cb := menuCallback("get:1:0")
	cb.Message.ReplyToMessage = nil // original request long gone

	g.handleCallback(context.Background(), cb)

	require.Zero(t, runner.replayCalls)
	require.Equal(t, []string{"This menu has expired. Please search again."}, bot.answers)
}

func TestHandleCallbackStateChanged(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{replayErr: agent.ErrStateChanged}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.handleCallback(context.Background(), menuCallback("get:3:1"))

	require.Equal(t, 1, runner.replayCalls)
	last := bot.edits[len(bot.edits)-1]
	require.Contains(t, last, "changed upstream")
	require.Empty(t, bot.deleted)
}

func TestHandleCallbackDeliveryTimeout(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{replayErr: agent.ErrDeliveryTimeout}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	g.handleCallback(context.Background(), menuCallback("get:2:0"))

	last := bot.edits[len(bot.edits)-1]
	require.Equal(t, "An error occurred during retrieval.", last)
}

func TestHandleCallbackChosenLabelFromKeyboard(t *testing.T) {
	bot := &fakeBot{}
	runner := &fakeRunner{}
	g, tr := newTestGateway(bot, runner)
	defer tr.Shutdown()

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Inception - 2010 - 1080p", "get:2:0")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Inception 2 - 720p", "get:1:4")),
	)
	cb := menuCallback("get:1:4")
	cb.Message.ReplyMarkup = &kb

	g.handleCallback(context.Background(), cb)

	require.Equal(t, "Fetching “Inception 2 - 720p”...", bot.edits[0])
}
