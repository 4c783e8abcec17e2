package content

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository defines persistence operations for rich content pages, files and archives.
type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	PagesForOwner(ctx context.Context, owner Owner) ([]Page, error)
	FilesForOwner(ctx context.Context, owner Owner) ([]File, error)
	ArchivesForOwner(ctx context.Context, owner Owner) ([]Archive, error)
	ApplyPagePlan(ctx context.Context, owner Owner, plan PagePlan) error
	ApplyFilePlan(ctx context.Context, owner Owner, plan FilePlan) error
	ApplyArchivePlan(ctx context.Context, owner Owner, plan ArchivePlan) error
	ArchiveByExternalID(ctx context.Context, externalID string) (*Archive, error)
	NextPendingArchive(ctx context.Context) (*Archive, error)
	UpdateArchiveStatus(ctx context.Context, externalID string, status ArchiveStatus, blobKey string) error
}

// GormRepository persists rich content using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// Transaction runs fn against a repository bound to a database transaction. The save
// pipeline is all-or-nothing: any error rolls back every page, file and archive change.
func (r *GormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx, logger: r.logger})
	})
}

func ownerScope(tx *gorm.DB, owner Owner) *gorm.DB {
	tx = tx.Where("product_id = ?", owner.ProductID)
	if owner.VariantID == nil {
		return tx.Where("variant_id IS NULL")
	}
	return tx.Where("variant_id = ?", *owner.VariantID)
}

// PagesForOwner returns the owner's alive pages ordered by position.
func (r *GormRepository) PagesForOwner(ctx context.Context, owner Owner) ([]Page, error) {
	var pages []Page
	err := ownerScope(r.db.WithContext(ctx), owner).Order("position ASC").Find(&pages).Error
	if err != nil {
		r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}
	return pages, nil
}

// FilesForOwner returns the owner's alive files in creation order.
func (r *GormRepository) FilesForOwner(ctx context.Context, owner Owner) ([]File, error) {
	var files []File
	err := ownerScope(r.db.WithContext(ctx), owner).Order("id ASC").Find(&files).Error
	if err != nil {
		r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "listing files")
		return nil, eris.Wrap(err, "listing files")
	}
	return files, nil
}

// ArchivesForOwner returns the owner's alive archives.
func (r *GormRepository) ArchivesForOwner(ctx context.Context, owner Owner) ([]Archive, error) {
	var archives []Archive
	err := ownerScope(r.db.WithContext(ctx), owner).Order("id ASC").Find(&archives).Error
	if err != nil {
		r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "listing archives")
		return nil, eris.Wrap(err, "listing archives")
	}
	return archives, nil
}

// ApplyPagePlan persists a reconciliation plan: updates in place, inserts creates with
// fresh external ids, soft-deletes removals.
func (r *GormRepository) ApplyPagePlan(ctx context.Context, owner Owner, plan PagePlan) error {
	tx := r.db.WithContext(ctx)

	for _, update := range plan.Updates {
		description, err := MarshalDocument(update.Description)
		if err != nil {
			return err
		}
		err = ownerScope(tx.Model(&Page{}), owner).
			Where("external_id = ?", update.ExternalID).
			Updates(map[string]any{
				"title":       update.Title,
				"description": datatypes.JSON(description),
				"position":    update.Position,
			}).Error
		if err != nil {
			r.logError(logrus.Fields{"page_id": update.ExternalID}, err, "updating page")
			return eris.Wrapf(err, "updating page: %s", update.ExternalID)
		}
	}

	for _, create := range plan.Creates {
		description, err := MarshalDocument(create.Description)
		if err != nil {
			return err
		}
		page := Page{
			ExternalID:  uuid.NewString(),
			ProductID:   owner.ProductID,
			VariantID:   owner.VariantID,
			Title:       create.Title,
			Description: datatypes.JSON(description),
			Position:    create.Position,
		}
		if err := tx.Create(&page).Error; err != nil {
			r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "creating page")
			return eris.Wrap(err, "creating page")
		}
	}

	if len(plan.Deletes) > 0 {
		err := ownerScope(tx, owner).Where("external_id IN ?", plan.Deletes).Delete(&Page{}).Error
		if err != nil {
			r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "soft-deleting pages")
			return eris.Wrap(err, "soft-deleting pages")
		}
	}

	return nil
}

// ApplyFilePlan persists a file reconciliation plan.
func (r *GormRepository) ApplyFilePlan(ctx context.Context, owner Owner, plan FilePlan) error {
	tx := r.db.WithContext(ctx)

	for _, update := range plan.Updates {
		err := ownerScope(tx.Model(&File{}), owner).
			Where("external_id = ?", update.ExternalID).
			Updates(map[string]any{
				"display_name":  update.DisplayName,
				"description":   update.Description,
				"thumbnail_url": update.ThumbnailURL,
			}).Error
		if err != nil {
			r.logError(logrus.Fields{"file_id": update.ExternalID}, err, "updating file")
			return eris.Wrapf(err, "updating file: %s", update.ExternalID)
		}
	}

	for _, create := range plan.Creates {
		file := File{
			ExternalID:   create.ExternalID,
			ProductID:    owner.ProductID,
			VariantID:    owner.VariantID,
			DisplayName:  create.DisplayName,
			Extension:    create.Extension,
			FileSize:     create.FileSize,
			URL:          create.URL,
			Description:  create.Description,
			ThumbnailURL: create.ThumbnailURL,
		}
		if err := tx.Create(&file).Error; err != nil {
			r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "creating file")
			return eris.Wrap(err, "creating file")
		}
	}

	if len(plan.Deletes) > 0 {
		err := ownerScope(tx, owner).Where("external_id IN ?", plan.Deletes).Delete(&File{}).Error
		if err != nil {
			r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "soft-deleting files")
			return eris.Wrap(err, "soft-deleting files")
		}
	}

	return nil
}

// ApplyArchivePlan persists an archive reconciliation plan. Archives are never updated
// in place: creates insert fresh pending rows, deletes soft-delete superseded ones.
func (r *GormRepository) ApplyArchivePlan(ctx context.Context, owner Owner, plan ArchivePlan) error {
	tx := r.db.WithContext(ctx)

	if len(plan.Deletes) > 0 {
		err := ownerScope(tx, owner).Where("external_id IN ?", plan.Deletes).Delete(&Archive{}).Error
		if err != nil {
			r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "soft-deleting archives")
			return eris.Wrap(err, "soft-deleting archives")
		}
	}

	for _, create := range plan.Creates {
		archive := Archive{
			ExternalID: uuid.NewString(),
			ProductID:  owner.ProductID,
			VariantID:  owner.VariantID,
			FolderID:   create.FolderID,
			FolderName: create.FolderName,
			Digest:     create.Digest,
			Status:     ArchivePending,
		}
		if err := tx.Create(&archive).Error; err != nil {
			r.logError(logrus.Fields{"product_id": owner.ProductID}, err, "creating archive")
			return eris.Wrap(err, "creating archive")
		}
	}

	return nil
}

// ArchiveByExternalID returns the alive archive with the given external id, or nil.
func (r *GormRepository) ArchiveByExternalID(ctx context.Context, externalID string) (*Archive, error) {
	var archive Archive
	err := r.db.WithContext(ctx).First(&archive, "external_id = ?", externalID).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"archive_id": externalID}, err, "fetching archive")
		return nil, eris.Wrapf(err, "fetching archive: %s", externalID)
	}
	return &archive, nil
}

// NextPendingArchive returns the oldest alive pending archive, or nil when the queue is
// empty.
func (r *GormRepository) NextPendingArchive(ctx context.Context) (*Archive, error) {
	var archive Archive
	err := r.db.WithContext(ctx).
		Where("status = ?", ArchivePending).
		Order("id ASC").
		First(&archive).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(nil, err, "fetching pending archive")
		return nil, eris.Wrap(err, "fetching pending archive")
	}
	return &archive, nil
}

// UpdateArchiveStatus advances an archive through the generation lifecycle.
func (r *GormRepository) UpdateArchiveStatus(ctx context.Context, externalID string, status ArchiveStatus, blobKey string) error {
	updates := map[string]any{"status": status}
	if blobKey != "" {
		updates["blob_key"] = blobKey
	}

	err := r.db.WithContext(ctx).
		Model(&Archive{}).
		Where("external_id = ?", externalID).
		Updates(updates).Error
	if err != nil {
		r.logError(logrus.Fields{"archive_id": externalID, "status": status}, err, "updating archive status")
		return eris.Wrapf(err, "updating archive status: %s", externalID)
	}

	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
