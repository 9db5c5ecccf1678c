package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"movie-relay/internal/agent"
	"movie-relay/internal/config"
	"movie-relay/internal/convo"
	"movie-relay/internal/gateway"
	"movie-relay/internal/httpapi"
	"movie-relay/internal/menu"
	"movie-relay/internal/middleware"
)

func main() {
	_ = godotenv.Load(".env")

	config.Load()
	config.SetupLogging()

	if config.BotToken() == "" {
		log.Fatal("BOT_TOKEN missing")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// outbound control surface (menus, status lines)
	bot, err := tgbotapi.NewBotAPIWithClient(config.BotToken(), config.BotAPIURL()+"/bot%s/%s",
		&http.Client{Timeout: 65 * time.Second}) // above the long-poll window
	if err != nil {
		log.Fatalf("bot credential check failed: %v", err)
	}
	log.Printf("[boot] control surface ready: @%s (%d)", bot.Self.UserName, bot.Self.ID)

	// inbound search channel (userbot sidecar)
	dialCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	bridge, err := convo.Dial(dialCtx, config.BridgeURL())
	cancel()
	if err != nil {
		log.Fatalf("bridge connect failed: %v", err)
	}
	defer bridge.Close()
	log.Printf("[boot] bridge connected: %s target=%s", config.BridgeURL(), config.TargetPeer())

	ag := &agent.Agent{
		Channel:      bridge,
		Peer:         config.TargetPeer(),
		ConvTimeout:  config.ConvTimeout(),
		EditWait:     config.EditWait(),
		GatePause:    config.GatePause(),
		MaxPages:     config.MaxPages(),
		PollAttempts: config.PollAttempts(),
	}

	// stale menus get their buttons pulled from the chat
	menus := menu.NewTracker(config.MenuTTL(), config.MenuSweep(), func(m menu.Menu) {
		_, _ = bot.Request(tgbotapi.NewDeleteMessage(m.ChatID, m.MessageID))
	})
	defer menus.Shutdown()

	stats := httpapi.NewStats()
	gw := gateway.New(gateway.Deps{Bot: bot, Agent: ag, Menus: menus, Stats: stats})

	// ops endpoints
	mux := http.NewServeMux()
	(&httpapi.Handler{Stats: stats, TargetPeer: config.TargetPeer(), Menus: menus}).Register(mux)
	srv := &http.Server{
		Addr:     config.ListenAddr(),
		Handler:  middleware.Recover(mux),
		ErrorLog: log.New(log.Writer(), "[http] ", 0),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	log.Printf("[boot] relay up: ops on %s, pages<=%d, menu ttl=%s",
		config.ListenAddr(), config.MaxPages(), config.MenuTTL())

	if err := gw.Run(rootCtx); err != nil {
		log.Printf("[boot] gateway stopped: %v", err)
	}

	log.Printf("[boot] shutdown requested")
	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Printf("[boot] shutdown complete")
}
