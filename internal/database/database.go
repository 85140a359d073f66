package database

import (
	"github.com/goldvein/goldvein/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func Initialize(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Additive-only schema management: AutoMigrate appends missing columns
	// and indexes, it never drops existing ones.
	if err := db.AutoMigrate(
		&models.ReferralCode{},
		&models.ReferralRelation{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
