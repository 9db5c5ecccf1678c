package config

import (
	"io"
	"log"
	"os"

	"movie-relay/internal/logx"
)

// SetupLogging routes the stdlib logger through the logx filter: only our
// tagged lines pass, and identical lines within the dedup window collapse.
func SetupLogging() {
	var out io.Writer = os.Stdout
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("WARN opening LOG_FILE=%q: %v", logFilePath, err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	log.SetOutput(logx.New(out, logDedupWin, logAllowRegex, logDenyRegex))
	log.Printf("[boot] logging configured (dedup=%s allow=%q deny=%q)", logDedupWin, logAllowRegex, logDenyRegex)
}
