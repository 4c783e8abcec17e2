package content

import (
	"testing"

	"gorm.io/datatypes"
)

func persistedPage(t *testing.T, externalID, title string, position int, doc Document) Page {
	t.Helper()

	raw, err := MarshalDocument(doc)
	if err != nil {
		t.Fatalf("MarshalDocument returned error: %v", err)
	}

	return Page{
		ExternalID:  externalID,
		ProductID:   1,
		Title:       title,
		Description: datatypes.JSON(raw),
		Position:    position,
	}
}

func textParagraph(text string) Node {
	return Node{Type: "paragraph", Content: []Node{{Type: "text", Text: text}}}
}

func TestReconcilePagesUpdatesExisting(t *testing.T) {
	t.Parallel()

	existing := []Page{
		persistedPage(t, "page-1", "Old title", 0, docWith(textParagraph("hello"))),
	}
	submitted := []PageSpec{
		{ID: "page-1", Title: "New title", Description: docWith(textParagraph("hello again"))},
	}

	plan := ReconcilePages(existing, submitted)

	if len(plan.Updates) != 1 || len(plan.Creates) != 0 || len(plan.Deletes) != 0 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Updates[0].Title != "New title" || plan.Updates[0].Position != 0 {
		t.Fatalf("unexpected update: %+v", plan.Updates[0])
	}
}

func TestReconcilePagesCreatesUnrecognizedIDs(t *testing.T) {
	t.Parallel()

	submitted := []PageSpec{
		{ID: "never-seen", Title: "Fresh", Description: docWith(textParagraph("content"))},
	}

	plan := ReconcilePages(nil, submitted)

	if len(plan.Creates) != 1 {
		t.Fatalf("expected a create for unrecognized id, got %+v", plan)
	}
	if plan.Creates[0].Position != 0 {
		t.Fatalf("expected position 0, got %d", plan.Creates[0].Position)
	}
}

func TestReconcilePagesDeletesAbsent(t *testing.T) {
	t.Parallel()

	existing := []Page{
		persistedPage(t, "page-1", "Keep", 0, docWith(textParagraph("a"))),
		persistedPage(t, "page-2", "Drop", 1, docWith(textParagraph("b"))),
	}
	submitted := []PageSpec{
		{ID: "page-1", Title: "Keep", Description: docWith(textParagraph("a"))},
	}

	plan := ReconcilePages(existing, submitted)

	if len(plan.Deletes) != 1 || plan.Deletes[0] != "page-2" {
		t.Fatalf("expected page-2 deleted, got %+v", plan.Deletes)
	}
}

func TestReconcilePagesResequencesPositions(t *testing.T) {
	t.Parallel()

	existing := []Page{
		persistedPage(t, "page-1", "First", 0, docWith(textParagraph("a"))),
		persistedPage(t, "page-2", "Second", 1, docWith(textParagraph("b"))),
	}
	submitted := []PageSpec{
		{ID: "page-2", Title: "Second", Description: docWith(textParagraph("b"))},
		{Title: "Inserted", Description: docWith(textParagraph("c"))},
		{ID: "page-1", Title: "First", Description: docWith(textParagraph("a"))},
	}

	plan := ReconcilePages(existing, submitted)

	positions := map[string]int{}
	for _, update := range plan.Updates {
		positions[update.ExternalID] = update.Position
	}
	if positions["page-2"] != 0 || positions["page-1"] != 2 {
		t.Fatalf("unexpected positions: %v", positions)
	}
	if len(plan.Creates) != 1 || plan.Creates[0].Position != 1 {
		t.Fatalf("expected create at position 1, got %+v", plan.Creates)
	}
}

func TestReconcilePagesSkipsEmptyDescriptions(t *testing.T) {
	t.Parallel()

	existing := []Page{
		persistedPage(t, "page-1", "Existing", 0, docWith(textParagraph("a"))),
	}
	submitted := []PageSpec{
		{ID: "page-1", Title: "Existing", Description: docWith(textParagraph("a"))},
		{Title: "Blank", Description: Document{Type: NodeTypeDoc}},
	}

	plan := ReconcilePages(existing, submitted)

	if len(plan.Creates) != 0 {
		t.Fatalf("expected no create for empty description, got %+v", plan.Creates)
	}
}

func TestReconcilePagesCreatesFallbackFirstPage(t *testing.T) {
	t.Parallel()

	submitted := []PageSpec{
		{Title: "", Description: Document{Type: NodeTypeDoc}},
	}

	plan := ReconcilePages(nil, submitted)

	if len(plan.Creates) != 1 {
		t.Fatalf("expected fallback first page to be created, got %+v", plan)
	}
}

func TestReconcilePagesNoFallbackAfterFirstSpec(t *testing.T) {
	t.Parallel()

	submitted := []PageSpec{
		{Title: "Real", Description: docWith(textParagraph("a"))},
		{Title: "Blank", Description: Document{Type: NodeTypeDoc}},
	}

	plan := ReconcilePages(nil, submitted)

	if len(plan.Creates) != 1 || plan.Creates[0].Title != "Real" {
		t.Fatalf("expected only the real page created, got %+v", plan.Creates)
	}
}

func TestReconcilePagesIdenticalResubmission(t *testing.T) {
	t.Parallel()

	existing := []Page{
		persistedPage(t, "page-1", "One", 0, docWith(textParagraph("a"))),
		persistedPage(t, "page-2", "Two", 1, docWith(textParagraph("b"))),
	}
	submitted := []PageSpec{
		{ID: "page-1", Title: "One", Description: docWith(textParagraph("a"))},
		{ID: "page-2", Title: "Two", Description: docWith(textParagraph("b"))},
	}

	plan := ReconcilePages(existing, submitted)

	if len(plan.Creates) != 0 || len(plan.Deletes) != 0 {
		t.Fatalf("identical resubmission should not create or delete: %+v", plan)
	}
	if len(plan.Updates) != 2 {
		t.Fatalf("expected in-place updates for survivors, got %+v", plan.Updates)
	}
}
