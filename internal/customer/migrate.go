package customer

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate runs the schema migration for customer models.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("database connection is required")
	}

	logger.WithField("component", "customer").Info("running database migration")

	if err := db.WithContext(ctx).AutoMigrate(&Customer{}, &Purchase{}); err != nil {
		return eris.Wrap(err, "migrating customer models")
	}

	logger.WithField("component", "customer").Info("database migration complete")
	return nil
}
