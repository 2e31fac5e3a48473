package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

type LogConf struct {
	Level string
}

type Config struct {
	Host    string
	Port    int
	User    string
	PW      string
	DBName  string
	LogConf LogConf
}

type Datastore struct {
	db *gorm.DB
}

var store *Datastore

func InitPostgres(ctx context.Context, conf *Config) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		conf.Host, conf.User, conf.PW, conf.DBName, conf.Port)

	level := gormlogger.Warn
	if conf.LogConf.Level == "debug" {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		logger.Fatalf(ctx, "init postgres fail err: %+v", err)
		return
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		logger.Errorf(ctx, "init postgres otel plugin err: %+v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf(ctx, "get sql db fail err: %+v", err)
		return
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store = &Datastore{db: db}
}

func ClosePostgres(_ context.Context) {
	if store == nil {
		return
	}
	if sqlDB, err := store.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func DB() *Datastore {
	return store
}

func (d *Datastore) DBIns() *gorm.DB {
	return d.db
}

func (d *Datastore) DBWithContext(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}
