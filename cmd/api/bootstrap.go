package main

import (
	"fmt"

	"github.com/rs-labo46/ec-payments/internal/config"
	"github.com/rs-labo46/ec-payments/internal/infra/db"
	"github.com/rs-labo46/ec-payments/internal/infra/logging"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"
)

// サブコマンド共通: 設定、ロガー、DB
type app struct {
	cfg    config.Config
	logger *log.Logger
	db     *gorm.DB
}

func bootstrap() (*app, error) {
	config.LoadDotEnv(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)

	gdb, err := db.Connect(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return &app{cfg: cfg, logger: logger, db: gdb}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
