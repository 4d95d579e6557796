package main

import (
	"github.com/septivank/meter-reading-uploads/internal/config"
	"github.com/septivank/meter-reading-uploads/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
}
