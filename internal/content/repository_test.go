package content

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"merchkit/app/internal/db"
)

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupRepository(t *testing.T) (*GormRepository, *gorm.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "content.db")
	conn, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := db.Close(conn); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	if err := Migrate(context.Background(), conn, silentLogger()); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	repo, err := NewRepository(conn, silentLogger())
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	return repo, conn
}

func unscopedCount(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()

	var count int64
	if err := conn.Unscoped().Model(model).Count(&count).Error; err != nil {
		t.Fatalf("counting rows failed: %v", err)
	}
	return count
}

func TestNewRepositoryRequiresDatabase(t *testing.T) {
	t.Parallel()

	if _, err := NewRepository(nil, nil); err == nil {
		t.Fatalf("expected error when database is nil")
	}
}

func TestApplyPagePlanRoundTrip(t *testing.T) {
	t.Parallel()

	repo, _ := setupRepository(t)
	ctx := context.Background()
	owner := Owner{ProductID: 1}

	plan := PagePlan{Creates: []PageCreate{
		{Title: "First", Description: docWith(textParagraph("a")), Position: 0},
		{Title: "Second", Description: docWith(textParagraph("b")), Position: 1},
	}}
	if err := repo.ApplyPagePlan(ctx, owner, plan); err != nil {
		t.Fatalf("ApplyPagePlan returned error: %v", err)
	}

	pages, err := repo.PagesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Title != "First" || pages[1].Title != "Second" {
		t.Fatalf("pages not ordered by position: %q, %q", pages[0].Title, pages[1].Title)
	}
	if pages[0].ExternalID == "" || pages[0].ExternalID == pages[1].ExternalID {
		t.Fatalf("expected distinct external ids, got %q and %q", pages[0].ExternalID, pages[1].ExternalID)
	}
}

func TestPageSoftDeleteKeepsRows(t *testing.T) {
	t.Parallel()

	repo, conn := setupRepository(t)
	ctx := context.Background()
	owner := Owner{ProductID: 1}

	create := PagePlan{Creates: []PageCreate{{Title: "Doomed", Description: docWith(textParagraph("x"))}}}
	if err := repo.ApplyPagePlan(ctx, owner, create); err != nil {
		t.Fatalf("ApplyPagePlan returned error: %v", err)
	}

	pages, err := repo.PagesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}

	before := unscopedCount(t, conn, &Page{})

	remove := PagePlan{Deletes: []string{pages[0].ExternalID}}
	if err := repo.ApplyPagePlan(ctx, owner, remove); err != nil {
		t.Fatalf("ApplyPagePlan returned error: %v", err)
	}

	alive, err := repo.PagesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}
	if len(alive) != 0 {
		t.Fatalf("expected no alive pages, got %d", len(alive))
	}

	after := unscopedCount(t, conn, &Page{})
	if after != before {
		t.Fatalf("soft delete changed row count: %d -> %d", before, after)
	}
}

func TestOwnerScopingSeparatesProductAndVariant(t *testing.T) {
	t.Parallel()

	repo, _ := setupRepository(t)
	ctx := context.Background()

	variantID := uint(7)
	productOwner := Owner{ProductID: 1}
	variantOwner := Owner{ProductID: 1, VariantID: &variantID}

	productPlan := PagePlan{Creates: []PageCreate{{Title: "Product page", Description: docWith(textParagraph("p"))}}}
	if err := repo.ApplyPagePlan(ctx, productOwner, productPlan); err != nil {
		t.Fatalf("ApplyPagePlan returned error: %v", err)
	}
	variantPlan := PagePlan{Creates: []PageCreate{{Title: "Variant page", Description: docWith(textParagraph("v"))}}}
	if err := repo.ApplyPagePlan(ctx, variantOwner, variantPlan); err != nil {
		t.Fatalf("ApplyPagePlan returned error: %v", err)
	}

	productPages, err := repo.PagesForOwner(ctx, productOwner)
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}
	if len(productPages) != 1 || productPages[0].Title != "Product page" {
		t.Fatalf("variant pages leaked into product scope: %+v", productPages)
	}

	variantPages, err := repo.PagesForOwner(ctx, variantOwner)
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}
	if len(variantPages) != 1 || variantPages[0].Title != "Variant page" {
		t.Fatalf("product pages leaked into variant scope: %+v", variantPages)
	}
}

func TestApplyArchivePlanNeverMutatesRows(t *testing.T) {
	t.Parallel()

	repo, conn := setupRepository(t)
	ctx := context.Background()
	owner := Owner{ProductID: 1}

	folderID := "folder-1"
	first := ArchivePlan{Creates: []ArchiveCreate{{FolderID: &folderID, FolderName: "Extras", Digest: "digest-1"}}}
	if err := repo.ApplyArchivePlan(ctx, owner, first); err != nil {
		t.Fatalf("ApplyArchivePlan returned error: %v", err)
	}

	archives, err := repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	if len(archives) != 1 || archives[0].Status != ArchivePending {
		t.Fatalf("expected one pending archive, got %+v", archives)
	}

	second := ArchivePlan{
		Deletes: []string{archives[0].ExternalID},
		Creates: []ArchiveCreate{{FolderID: &folderID, FolderName: "Extras", Digest: "digest-2"}},
	}
	if err := repo.ApplyArchivePlan(ctx, owner, second); err != nil {
		t.Fatalf("ApplyArchivePlan returned error: %v", err)
	}

	alive, err := repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	if len(alive) != 1 || alive[0].Digest != "digest-2" {
		t.Fatalf("expected replacement archive, got %+v", alive)
	}
	if alive[0].ExternalID == archives[0].ExternalID {
		t.Fatalf("archive row was reused instead of replaced")
	}

	if total := unscopedCount(t, conn, &Archive{}); total != 2 {
		t.Fatalf("expected 2 archive rows including the soft-deleted one, got %d", total)
	}
}

func TestPendingArchiveQueue(t *testing.T) {
	t.Parallel()

	repo, _ := setupRepository(t)
	ctx := context.Background()
	owner := Owner{ProductID: 1}

	if archive, err := repo.NextPendingArchive(ctx); err != nil || archive != nil {
		t.Fatalf("expected empty queue, got %v, %v", archive, err)
	}

	plan := ArchivePlan{Creates: []ArchiveCreate{{Digest: "digest-1"}}}
	if err := repo.ApplyArchivePlan(ctx, owner, plan); err != nil {
		t.Fatalf("ApplyArchivePlan returned error: %v", err)
	}

	pending, err := repo.NextPendingArchive(ctx)
	if err != nil {
		t.Fatalf("NextPendingArchive returned error: %v", err)
	}
	if pending == nil {
		t.Fatalf("expected a pending archive")
	}

	if err := repo.UpdateArchiveStatus(ctx, pending.ExternalID, ArchiveInProgress, ""); err != nil {
		t.Fatalf("UpdateArchiveStatus returned error: %v", err)
	}
	if archive, err := repo.NextPendingArchive(ctx); err != nil || archive != nil {
		t.Fatalf("in-progress archive still reported pending: %v, %v", archive, err)
	}

	if err := repo.UpdateArchiveStatus(ctx, pending.ExternalID, ArchiveReady, "blobs/archive.zip"); err != nil {
		t.Fatalf("UpdateArchiveStatus returned error: %v", err)
	}

	stored, err := repo.ArchiveByExternalID(ctx, pending.ExternalID)
	if err != nil {
		t.Fatalf("ArchiveByExternalID returned error: %v", err)
	}
	if stored == nil || stored.Status != ArchiveReady || stored.BlobKey != "blobs/archive.zip" {
		t.Fatalf("unexpected stored archive: %+v", stored)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	t.Parallel()

	repo, conn := setupRepository(t)
	ctx := context.Background()
	owner := Owner{ProductID: 1}

	err := repo.Transaction(ctx, func(tx Repository) error {
		plan := PagePlan{Creates: []PageCreate{{Title: "Ghost", Description: docWith(textParagraph("x"))}}}
		if err := tx.ApplyPagePlan(ctx, owner, plan); err != nil {
			return err
		}
		return context.Canceled
	})
	if err == nil {
		t.Fatalf("expected transaction error")
	}

	if total := unscopedCount(t, conn, &Page{}); total != 0 {
		t.Fatalf("expected rollback to remove page rows, got %d", total)
	}
}
