package content

import (
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// FileSpec is one submitted file. ID is either the external id of a persisted file or a
// client-generated temporary id for a fresh upload.
type FileSpec struct {
	ID           string
	URL          string
	DisplayName  string
	Description  string
	ThumbnailURL string
	FileSize     int64
}

// Validate rejects malformed file specs. Any invalid file aborts the whole save.
func (s FileSpec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required, validation.Length(1, 64)),
		validation.Field(&s.URL, validation.Required, is.RequestURL),
		validation.Field(&s.DisplayName, validation.Length(0, 255)),
		validation.Field(&s.FileSize, validation.Min(0)),
	)
}

// FileUpdate applies new metadata to an existing alive file.
type FileUpdate struct {
	ExternalID   string
	DisplayName  string
	Description  string
	ThumbnailURL string
}

// FileCreate inserts a newly uploaded file. TempID is the client-side id used inside
// submitted documents; ExternalID is the persisted id it must be rewritten to.
type FileCreate struct {
	TempID       string
	ExternalID   string
	URL          string
	DisplayName  string
	Extension    string
	FileSize     int64
	Description  string
	ThumbnailURL string
}

// FilePlan is the outcome of diffing submitted file specs against persisted files.
// IDMapping carries every temporary id to its assigned persisted id for document rewrite.
type FilePlan struct {
	Updates   []FileUpdate
	Creates   []FileCreate
	Deletes   []string
	IDMapping map[string]string
}

// ReconcileFiles diffs the submitted file list against the persisted alive files of one
// owner. Specs matching an existing external id update metadata in place; anything else
// becomes a new file under a freshly minted external id (newID); persisted files absent
// from the submission are soft-deleted.
func ReconcileFiles(existing []File, submitted []FileSpec, newID func() string) (FilePlan, error) {
	byExternalID := make(map[string]*File, len(existing))
	for i := range existing {
		byExternalID[existing[i].ExternalID] = &existing[i]
	}

	plan := FilePlan{IDMapping: make(map[string]string)}
	seen := make(map[string]bool, len(submitted))

	for _, spec := range submitted {
		if err := spec.Validate(); err != nil {
			return FilePlan{}, err
		}

		if file, ok := byExternalID[spec.ID]; ok && !seen[spec.ID] {
			seen[spec.ID] = true
			plan.Updates = append(plan.Updates, FileUpdate{
				ExternalID:   file.ExternalID,
				DisplayName:  displayNameFor(spec),
				Description:  spec.Description,
				ThumbnailURL: spec.ThumbnailURL,
			})
			continue
		}

		persistedID := newID()
		plan.IDMapping[spec.ID] = persistedID
		plan.Creates = append(plan.Creates, FileCreate{
			TempID:       spec.ID,
			ExternalID:   persistedID,
			URL:          spec.URL,
			DisplayName:  displayNameFor(spec),
			Extension:    extensionFor(spec),
			FileSize:     spec.FileSize,
			Description:  spec.Description,
			ThumbnailURL: spec.ThumbnailURL,
		})
	}

	for i := range existing {
		if !seen[existing[i].ExternalID] {
			plan.Deletes = append(plan.Deletes, existing[i].ExternalID)
		}
	}

	return plan, nil
}

func displayNameFor(spec FileSpec) string {
	if name := strings.TrimSpace(spec.DisplayName); name != "" {
		return name
	}

	base := path.Base(strings.SplitN(spec.URL, "?", 2)[0])
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" || base == "" {
		return "Untitled"
	}
	return base
}

func extensionFor(spec FileSpec) string {
	ext := path.Ext(strings.SplitN(spec.URL, "?", 2)[0])
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}
