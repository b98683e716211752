package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tileboardhq/tileboard/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Client holds the database connection
type Client struct {
	DB *gorm.DB
}

// NewClient connects to Postgres and runs migrations
func NewClient(databaseURL string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		// Map driver unique-violation errors to gorm.ErrDuplicatedKey so
		// the email merge path can detect them portably
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed getting sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("✅ Database connected")

	return &Client{DB: db}, nil
}

// Migrate runs schema migrations for all persisted models
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.Dashboard{},
		&models.Tile{},
		&models.Contact{},
		&models.Note{},
		&models.Asset{},
		&models.Purchase{},
	); err != nil {
		return fmt.Errorf("failed running migrations: %w", err)
	}
	return nil
}

// Ping verifies the database connection
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
