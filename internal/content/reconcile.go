package content

// PageSpec is one submitted page from the editor. ID is empty (or unrecognized) for
// pages that do not exist yet; Position is implied by the slice index.
type PageSpec struct {
	ID          string
	Title       string
	Description Document
}

// PageUpdate applies new content to an existing alive page.
type PageUpdate struct {
	ExternalID  string
	Title       string
	Description Document
	Position    int
}

// PageCreate inserts a brand new page.
type PageCreate struct {
	Title       string
	Description Document
	Position    int
}

// PagePlan is the outcome of diffing submitted specs against persisted pages. Applying
// it is the repository's job; computing it has no side effects.
type PagePlan struct {
	Updates []PageUpdate
	Creates []PageCreate
	Deletes []string
}

// Empty reports whether the plan changes nothing.
func (p PagePlan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Creates) == 0 && len(p.Deletes) == 0
}

// ReconcilePages diffs the submitted ordered page list against the persisted alive
// pages of one owner:
//
//   - a spec whose ID matches an existing page updates it in place,
//   - a spec without a recognized ID creates a new page,
//   - existing pages absent from the submission are soft-deleted,
//   - positions are resequenced 0-based and contiguous in submission order.
//
// A spec with an empty description and no ID is skipped, except that the very first
// page of an owner that has none yet is still created so a fallback page exists once
// the editor has emitted content.
func ReconcilePages(existing []Page, submitted []PageSpec) PagePlan {
	byExternalID := make(map[string]*Page, len(existing))
	for i := range existing {
		byExternalID[existing[i].ExternalID] = &existing[i]
	}

	var plan PagePlan
	seen := make(map[string]bool, len(submitted))
	position := 0

	for _, spec := range submitted {
		if spec.ID != "" {
			if page, ok := byExternalID[spec.ID]; ok && !seen[spec.ID] {
				seen[spec.ID] = true
				plan.Updates = append(plan.Updates, PageUpdate{
					ExternalID:  page.ExternalID,
					Title:       spec.Title,
					Description: spec.Description,
					Position:    position,
				})
				position++
				continue
			}
		}

		if spec.Description.IsEmpty() && spec.ID == "" {
			firstEver := len(existing) == 0 && len(plan.Creates) == 0 && position == 0
			if !firstEver {
				continue
			}
		}

		plan.Creates = append(plan.Creates, PageCreate{
			Title:       spec.Title,
			Description: spec.Description,
			Position:    position,
		})
		position++
	}

	for i := range existing {
		if !seen[existing[i].ExternalID] {
			plan.Deletes = append(plan.Deletes, existing[i].ExternalID)
		}
	}

	return plan
}
