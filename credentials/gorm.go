package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/neowatch/globals"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type credentialRecord struct {
	Name      string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	Secure    bool
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (credentialRecord) TableName() string {
	return "credentials"
}

// GormStore persists the credentials in a sql table. Expired rows are treated as absent and removed when read.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore opens the database; dbType is "sqlite" or "postgres".
func NewGormStore(dbType, dsn string) (*GormStore, error) {
	var dial gorm.Dialector
	switch dbType {
	case "postgres":
		dial = postgres.Open(dsn)

	case "sqlite":
		dial = sqlite.Open(dsn)

	default:
		return nil, fmt.Errorf("invalid gorm configuration: %q", dbType)
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	err = db.AutoMigrate(&credentialRecord{})
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func (s *GormStore) Lookup(name string) (Entry, bool) {
	rec := credentialRecord{}
	err := s.db.Where("name = ?", name).First(&rec).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			globals.AppLogger.Error("could not read credential", "name", name, "error", err)
		}
		return Entry{}, false
	}
	e := Entry{Value: rec.Value, Secure: rec.Secure}
	if rec.ExpiresAt != nil {
		e.ExpiresAt = *rec.ExpiresAt
	}
	if e.expired(s.now()) {
		s.Remove(name)
		return Entry{}, false
	}
	return e, true
}

func (s *GormStore) Get(name string) (string, bool) {
	e, ok := s.Lookup(name)
	return e.Value, ok
}

func (s *GormStore) Set(name, value string, opts SetOptions) {
	e := newEntry(value, opts, s.now())
	rec := credentialRecord{Name: name, Value: e.Value, Secure: e.Secure}
	if !e.ExpiresAt.IsZero() {
		rec.ExpiresAt = &e.ExpiresAt
	}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		globals.AppLogger.Error("could not store credential", "name", name, "error", err)
	}
}

func (s *GormStore) Remove(name string) {
	err := s.db.Where("name = ?", name).Delete(&credentialRecord{}).Error
	if err != nil {
		globals.AppLogger.Error("could not remove credential", "name", name, "error", err)
	}
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
