// Package logging points the standard logger at stderr and a rotating log
// file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/thrane20/dillinger/internal/config"
)

// Setup configures the std logger from cfg. With an empty file path only
// stderr is used. The returned closer flushes the rotating file.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LogConfig, console io.Writer) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if strings.TrimSpace(cfg.File) == "" {
		log.SetOutput(console)
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(console, file))
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
