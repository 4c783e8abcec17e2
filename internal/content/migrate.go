package content

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the rich content schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "content.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying rich content schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Page{}, &File{}, &Archive{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("rich content schema migration failed")
		}
		return eris.Wrap(err, "auto migrating rich content schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("rich content schema migration complete")
	}

	return nil
}
