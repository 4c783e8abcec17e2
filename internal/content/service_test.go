package content

import (
	"context"
	"strings"
	"testing"

	"gorm.io/gorm"
)

func setupService(t *testing.T) (Service, *GormRepository, *gorm.DB) {
	t.Helper()

	repo, conn := setupRepository(t)
	svc, err := NewService(repo, silentLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc, repo, conn
}

func submittedFile(tempID, name string) FileSpec {
	return FileSpec{
		ID:          tempID,
		URL:         "https://cdn.example.com/uploads/" + tempID + ".pdf",
		DisplayName: name,
		FileSize:    1024,
	}
}

func folderSave(productID uint, folderName string) SaveInput {
	return SaveInput{
		ProductID: productID,
		Pages: []PageSpec{{
			Title: "Page 1",
			Description: docWith(
				folderNode("folder-1", folderName, fileEmbed("temp-f1"), fileEmbed("temp-f2")),
			),
		}},
		Files: []FileSpec{
			submittedFile("temp-f1", "File 1"),
			submittedFile("temp-f2", "File 2"),
		},
		SharedAcrossVariants: true,
	}
}

// resubmission rebuilds the input the client would send back: persisted page and file
// ids in place of the temporary ones. When renameFile2 is non-empty, the file named
// "File 2" is resubmitted under the new display name.
func resubmission(t *testing.T, repo *GormRepository, productID uint, renameFile2 string) SaveInput {
	t.Helper()
	ctx := context.Background()
	owner := Owner{ProductID: productID}

	pages, err := repo.PagesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}
	files, err := repo.FilesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("FilesForOwner returned error: %v", err)
	}

	input := SaveInput{ProductID: productID, SharedAcrossVariants: true}
	for _, page := range pages {
		doc, err := ParseDocument(page.Description)
		if err != nil {
			t.Fatalf("ParseDocument returned error: %v", err)
		}
		input.Pages = append(input.Pages, PageSpec{ID: page.ExternalID, Title: page.Title, Description: doc})
	}
	for _, file := range files {
		name := file.DisplayName
		if renameFile2 != "" && file.DisplayName == "File 2" {
			name = renameFile2
		}
		input.Files = append(input.Files, FileSpec{
			ID:          file.ExternalID,
			URL:         file.URL,
			DisplayName: name,
			FileSize:    file.FileSize,
		})
	}
	return input
}

func TestSaveRichContentEndToEnd(t *testing.T) {
	t.Parallel()

	svc, repo, _ := setupService(t)
	ctx := context.Background()

	summaries, err := svc.SaveRichContent(ctx, folderSave(1, ""))
	if err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Title != "Page 1" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	owner := Owner{ProductID: 1}
	files, err := repo.FilesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("FilesForOwner returned error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 persisted files, got %d", len(files))
	}

	archives, err := repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}

	var folderArchive, wholeArchive *Archive
	for i := range archives {
		if archives[i].FolderID != nil {
			folderArchive = &archives[i]
		} else {
			wholeArchive = &archives[i]
		}
	}
	if folderArchive == nil {
		t.Fatalf("expected a folder archive, got %+v", archives)
	}
	if wholeArchive == nil {
		t.Fatalf("expected a whole-product archive, got %+v", archives)
	}
	if *folderArchive.FolderID != "folder-1" || folderArchive.FolderName != "Untitled 1" {
		t.Fatalf("unexpected folder archive: %+v", folderArchive)
	}
	if folderArchive.Status != ArchivePending {
		t.Fatalf("expected pending archive, got %s", folderArchive.Status)
	}

	want := expectedDigest(
		"folder-1/Untitled 1/"+files[0].ExternalID+"/File 1",
		"folder-1/Untitled 1/"+files[1].ExternalID+"/File 2",
	)
	if folderArchive.Digest != want {
		t.Fatalf("expected digest %s, got %s", want, folderArchive.Digest)
	}
}

func TestSaveRichContentRewritesTemporaryIDs(t *testing.T) {
	t.Parallel()

	svc, repo, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.SaveRichContent(ctx, folderSave(1, "Extras")); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	owner := Owner{ProductID: 1}
	pages, err := repo.PagesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}
	files, err := repo.FilesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("FilesForOwner returned error: %v", err)
	}

	stored := string(pages[0].Description)
	if strings.Contains(stored, "temp-f1") || strings.Contains(stored, "temp-f2") {
		t.Fatalf("temporary ids survived the save: %s", stored)
	}
	for _, file := range files {
		if !strings.Contains(stored, file.ExternalID) {
			t.Fatalf("persisted id %s missing from document: %s", file.ExternalID, stored)
		}
	}
}

func TestSaveRichContentIdempotentResubmission(t *testing.T) {
	t.Parallel()

	svc, repo, conn := setupService(t)
	ctx := context.Background()

	if _, err := svc.SaveRichContent(ctx, folderSave(1, "Extras")); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	owner := Owner{ProductID: 1}
	archivesBefore, err := repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	pagesBefore := unscopedCount(t, conn, &Page{})
	filesBefore := unscopedCount(t, conn, &File{})
	archiveRowsBefore := unscopedCount(t, conn, &Archive{})

	if _, err := svc.SaveRichContent(ctx, resubmission(t, repo, 1, "")); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	if got := unscopedCount(t, conn, &Page{}); got != pagesBefore {
		t.Fatalf("resubmission created page rows: %d -> %d", pagesBefore, got)
	}
	if got := unscopedCount(t, conn, &File{}); got != filesBefore {
		t.Fatalf("resubmission created file rows: %d -> %d", filesBefore, got)
	}
	if got := unscopedCount(t, conn, &Archive{}); got != archiveRowsBefore {
		t.Fatalf("resubmission created archive rows: %d -> %d", archiveRowsBefore, got)
	}

	archivesAfter, err := repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	if len(archivesAfter) != len(archivesBefore) {
		t.Fatalf("alive archive count changed: %d -> %d", len(archivesBefore), len(archivesAfter))
	}
	for i := range archivesBefore {
		if archivesAfter[i].Digest != archivesBefore[i].Digest {
			t.Fatalf("digest changed on identical resubmission")
		}
	}
}

func TestSaveRichContentRenameReplacesArchive(t *testing.T) {
	t.Parallel()

	svc, repo, conn := setupService(t)
	ctx := context.Background()

	if _, err := svc.SaveRichContent(ctx, folderSave(1, "Extras")); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	owner := Owner{ProductID: 1}
	before, err := repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	rowsBefore := unscopedCount(t, conn, &Archive{})

	// Rename File 2; both the folder archive and the whole-product archive go stale.
	if _, err := svc.SaveRichContent(ctx, resubmission(t, repo, 1, "File 2 renamed")); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	after, err := repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("alive archive count changed on rename: %d -> %d", len(before), len(after))
	}

	beforeIDs := make(map[string]bool, len(before))
	for _, archive := range before {
		beforeIDs[archive.ExternalID] = true
	}
	for _, archive := range after {
		if beforeIDs[archive.ExternalID] {
			t.Fatalf("stale archive %s still alive after rename", archive.ExternalID)
		}
		if archive.Status != ArchivePending {
			t.Fatalf("replacement archive should be pending, got %s", archive.Status)
		}
	}

	rowsAfter := unscopedCount(t, conn, &Archive{})
	if rowsAfter != rowsBefore+int64(len(before)) {
		t.Fatalf("expected %d archive rows after replacement, got %d", rowsBefore+int64(len(before)), rowsAfter)
	}
}

func TestSaveRichContentBrokenReferencesDropped(t *testing.T) {
	t.Parallel()

	svc, repo, _ := setupService(t)
	ctx := context.Background()

	input := SaveInput{
		ProductID: 1,
		Pages: []PageSpec{{
			Title:       "Page 1",
			Description: docWith(fileEmbed("temp-f1"), fileEmbed("vanished")),
		}},
		Files:                []FileSpec{submittedFile("temp-f1", "File 1")},
		SharedAcrossVariants: true,
	}

	if _, err := svc.SaveRichContent(ctx, input); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	pages, err := repo.PagesForOwner(ctx, Owner{ProductID: 1})
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}

	doc, err := ParseDocument(pages[0].Description)
	if err != nil {
		t.Fatalf("ParseDocument returned error: %v", err)
	}
	if ids := doc.FileEmbedIDs(); len(ids) != 1 {
		t.Fatalf("expected broken reference dropped, got %v", ids)
	}
}

func TestSaveRichContentInvalidFileAbortsSave(t *testing.T) {
	t.Parallel()

	svc, repo, conn := setupService(t)
	ctx := context.Background()

	input := folderSave(1, "Extras")
	input.Files[1].URL = "not a url"

	if _, err := svc.SaveRichContent(ctx, input); err == nil {
		t.Fatalf("expected validation error")
	}

	// All-or-nothing: nothing was persisted, not even the valid file.
	if got := unscopedCount(t, conn, &File{}); got != 0 {
		t.Fatalf("expected no file rows after aborted save, got %d", got)
	}
	if got := unscopedCount(t, conn, &Page{}); got != 0 {
		t.Fatalf("expected no page rows after aborted save, got %d", got)
	}

	pages, err := repo.PagesForOwner(ctx, Owner{ProductID: 1})
	if err != nil {
		t.Fatalf("PagesForOwner returned error: %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected no alive pages, got %d", len(pages))
	}
}

func TestSaveRichContentModeSwitchMovesWholeArchives(t *testing.T) {
	t.Parallel()

	svc, repo, _ := setupService(t)
	ctx := context.Background()

	variantA, variantB := uint(10), uint(11)

	shared := folderSave(1, "Extras")
	shared.VariantIDs = []uint{variantA, variantB}
	if _, err := svc.SaveRichContent(ctx, shared); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	productOwner := Owner{ProductID: 1}
	archives, err := repo.ArchivesForOwner(ctx, productOwner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	hasWhole := false
	for _, archive := range archives {
		if archive.FolderID == nil {
			hasWhole = true
		}
	}
	if !hasWhole {
		t.Fatalf("expected whole-product archive in shared mode: %+v", archives)
	}

	// Switch to per-variant content: variant A gets a folder with two files, the
	// product keeps no direct files.
	perVariant := SaveInput{
		ProductID:  1,
		VariantIDs: []uint{variantA, variantB},
		Variants: []VariantContent{{
			VariantID: variantA,
			Pages: []PageSpec{{
				Title: "Variant page",
				Description: docWith(
					folderNode("folder-a", "Variant pack", fileEmbed("temp-v1"), fileEmbed("temp-v2")),
				),
			}},
			Files: []FileSpec{
				submittedFile("temp-v1", "Variant file 1"),
				submittedFile("temp-v2", "Variant file 2"),
			},
		}},
		SharedAcrossVariants: false,
	}
	if _, err := svc.SaveRichContent(ctx, perVariant); err != nil {
		t.Fatalf("SaveRichContent returned error: %v", err)
	}

	productArchives, err := repo.ArchivesForOwner(ctx, productOwner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	if len(productArchives) != 0 {
		t.Fatalf("expected no alive product archives after mode switch, got %+v", productArchives)
	}

	variantOwner := Owner{ProductID: 1, VariantID: &variantA}
	variantArchives, err := repo.ArchivesForOwner(ctx, variantOwner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	foundFolder, foundWhole := false, false
	for _, archive := range variantArchives {
		if archive.FolderID != nil {
			foundFolder = true
		} else {
			foundWhole = true
		}
	}
	if !foundFolder || !foundWhole {
		t.Fatalf("expected variant folder and whole archives, got %+v", variantArchives)
	}

	otherOwner := Owner{ProductID: 1, VariantID: &variantB}
	otherArchives, err := repo.ArchivesForOwner(ctx, otherOwner)
	if err != nil {
		t.Fatalf("ArchivesForOwner returned error: %v", err)
	}
	if len(otherArchives) != 0 {
		t.Fatalf("variant without files should have no archives, got %+v", otherArchives)
	}
}
