package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	targetPeer = "ProSearchM5Bot" // the remote search bot we converse with
	bridgeURL  = "ws://127.0.0.1:8765/ws"
	botAPIURL  = "https://api.telegram.org"
	botToken   string

	maxPages     = 20
	convTimeout  = 180 * time.Second
	editWait     = 15 * time.Second
	gatePause    = 2 * time.Second
	pollAttempts = 8

	menuTTL   = 30 * time.Minute
	menuSweep = time.Minute

	listenAddr = ":4002"

	// logging
	logFilePath   = ""
	logAllowRegex = `^\[(boot|gateway|discover|replay|bridge|menu|http|stats)\]`
	logDenyRegex  = ""
	logDedupWin   = 2 * time.Second
)

func Load() {
	targetPeer = getenv("TARGET_PEER", targetPeer)
	bridgeURL = getenv("BRIDGE_URL", bridgeURL)
	botAPIURL = strings.TrimRight(getenv("BOT_API_URL", botAPIURL), "/")
	botToken = getenv("BOT_TOKEN", "")

	maxPages = getenvInt("MAX_PAGES", maxPages)
	convTimeout = getenvDuration("CONV_TIMEOUT", convTimeout)
	editWait = getenvDuration("EDIT_WAIT", editWait)
	gatePause = getenvDuration("GATE_PAUSE", gatePause)
	pollAttempts = getenvInt("POLL_ATTEMPTS", pollAttempts)

	menuTTL = getenvDuration("MENU_TTL", menuTTL)
	menuSweep = getenvDuration("MENU_SWEEP", menuSweep)

	listenAddr = getenv("LISTEN", listenAddr)

	logFilePath = getenv("LOG_FILE", logFilePath)
	logAllowRegex = getenv("LOG_ALLOW", logAllowRegex)
	logDenyRegex = getenv("LOG_DENY", logDenyRegex)
	logDedupWin = getenvDuration("LOG_DEDUP_WINDOW", logDedupWin)
}

func TargetPeer() string            { return targetPeer }
func BridgeURL() string             { return bridgeURL }
func BotAPIURL() string             { return botAPIURL }
func BotToken() string              { return botToken }
func MaxPages() int                 { return maxPages }
func ConvTimeout() time.Duration    { return convTimeout }
func EditWait() time.Duration       { return editWait }
func GatePause() time.Duration      { return gatePause }
func PollAttempts() int             { return pollAttempts }
func MenuTTL() time.Duration        { return menuTTL }
func MenuSweep() time.Duration      { return menuSweep }
func ListenAddr() string            { return listenAddr }
func LogFilePath() string           { return logFilePath }
func LogAllowRegex() string         { return logAllowRegex }
func LogDenyRegex() string          { return logDenyRegex }
func LogDedupWindow() time.Duration { return logDedupWin }

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
