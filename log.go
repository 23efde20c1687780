package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// setupLog routes logging to $NARRATO_LOGFILE when set and silences it
// otherwise, keeping player output clean. The returned closer releases
// the log sink.
func setupLog() (func() error, error) {
	logFile := os.Getenv("NARRATO_LOGFILE")
	if logFile == "" {
		log.SetOutput(io.Discard)
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("error setting up log file: %w", err)
	}

	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.Kitchen)
	if os.Getenv("NARRATO_DEBUG") != "" || viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	return f.Close, nil
}
