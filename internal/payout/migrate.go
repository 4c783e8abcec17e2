package payout

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate runs the schema migration for payout models.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("database connection is required")
	}

	logger.WithField("component", "payout").Info("running database migration")

	if err := db.WithContext(ctx).AutoMigrate(&Method{}); err != nil {
		return eris.Wrap(err, "migrating payout models")
	}

	logger.WithField("component", "payout").Info("database migration complete")
	return nil
}
