package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDedupeAnonSubmissions = "2026-01-12_dedupe_anon_submissions"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDedupeAnonSubmissions, apply: dedupeAnonSubmissions},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// dedupeAnonSubmissions enforces one record per anonymous identity at the
// store level. Rows written before the unique index existed may contain
// duplicates from the check-then-act race; the earliest submission wins,
// then the index makes the lost race a constraint error instead of a
// silent duplicate.
func dedupeAnonSubmissions(db *gorm.DB) error {
	deleteDuplicates := "DELETE FROM messages WHERE id NOT IN (SELECT MIN(id) FROM messages GROUP BY anon_id);"
	if err := db.Exec(deleteDuplicates).Error; err != nil {
		return err
	}
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_anon_id ON messages(anon_id);").Error
}
