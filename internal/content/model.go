package content

import (
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Owner identifies who a page, file, or archive belongs to: a product directly, or a
// specific variant of it when per-variant rich content is enabled.
type Owner struct {
	ProductID uint
	VariantID *uint
}

// Variant reports whether the owner is a variant rather than the product itself.
func (o Owner) Variant() bool {
	return o.VariantID != nil
}

// Page is a single rich-content document of a product or variant, ordered by Position
// within its owner. Pages are soft-deleted, never removed.
type Page struct {
	gorm.Model
	ExternalID  string         `gorm:"size:36;uniqueIndex:idx_pages_external_id;not null"`
	ProductID   uint           `gorm:"index:idx_pages_owner;not null"`
	VariantID   *uint          `gorm:"index:idx_pages_owner"`
	Title       string         `gorm:"size:255"`
	Description datatypes.JSON `gorm:"type:text"`
	Position    int            `gorm:"not null;default:0"`
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "rich_content_pages"
}

// Owner returns the page's owning product or variant.
func (p Page) Owner() Owner {
	return Owner{ProductID: p.ProductID, VariantID: p.VariantID}
}

// File is an upload attached to a product or variant. External ids are stable server
// identifiers; client-side temporary ids only exist inside a single save request.
type File struct {
	gorm.Model
	ExternalID   string `gorm:"size:36;uniqueIndex:idx_files_external_id;not null"`
	ProductID    uint   `gorm:"index:idx_files_owner;not null"`
	VariantID    *uint  `gorm:"index:idx_files_owner"`
	DisplayName  string `gorm:"size:255"`
	Extension    string `gorm:"size:32"`
	FileSize     int64
	URL          string `gorm:"size:2048;not null"`
	Description  string `gorm:"type:text"`
	ThumbnailURL string `gorm:"size:2048"`
}

// TableName defines the table name for the File model.
func (File) TableName() string {
	return "product_files"
}

// ArchiveStatus tracks asynchronous zip generation.
type ArchiveStatus string

// Archive generation states. The reconciler only ever creates pending archives; the
// archiver worker advances them.
const (
	ArchivePending    ArchiveStatus = "pending"
	ArchiveInProgress ArchiveStatus = "in_progress"
	ArchiveReady      ArchiveStatus = "ready"
)

// Archive is a derived zip bundle: one per folder block with two or more files, plus
// one whole-owner archive (FolderID nil) covering every alive file. Archives are never
// mutated in place; a digest change soft-deletes the old row and creates a new one.
type Archive struct {
	gorm.Model
	ExternalID string        `gorm:"size:36;uniqueIndex:idx_archives_external_id;not null"`
	ProductID  uint          `gorm:"index:idx_archives_owner;not null"`
	VariantID  *uint         `gorm:"index:idx_archives_owner"`
	FolderID   *string       `gorm:"size:64;index"`
	FolderName string        `gorm:"size:255"`
	Digest     string        `gorm:"size:40;not null"`
	Status     ArchiveStatus `gorm:"size:16;not null;default:pending"`
	BlobKey    string        `gorm:"size:255"`
}

// TableName defines the table name for the Archive model.
func (Archive) TableName() string {
	return "product_file_archives"
}

// Owner returns the archive's owning product or variant.
func (a Archive) Owner() Owner {
	return Owner{ProductID: a.ProductID, VariantID: a.VariantID}
}

// DownloadFilename derives the zip filename served to buyers. Folder archives use the
// folder name, the whole-owner archive uses the fallback (normally the product name).
// Spaces become underscores.
func (a Archive) DownloadFilename(fallback string) string {
	name := strings.TrimSpace(a.FolderName)
	if a.FolderID == nil || name == "" {
		name = strings.TrimSpace(fallback)
	}
	if name == "" {
		name = "files"
	}
	return fmt.Sprintf("%s.zip", strings.ReplaceAll(name, " ", "_"))
}
