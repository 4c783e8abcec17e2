package content

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// archiveEntry is one file's line in an archive's canonical digest input.
type archiveEntry struct {
	FolderID   string
	FolderName string
	FileID     string
	FileName   string
}

// computeDigest hashes the canonical, sorted representation of an archive's contents.
// Using a content digest rather than timestamps keeps invalidation independent of which
// field changed and lets content that round-trips to an unchanged state keep its archive.
func computeDigest(entries []archiveEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s/%s/%s/%s", entry.FolderID, entry.FolderName, entry.FileID, entry.FileName))
	}
	sort.Strings(lines)

	sum := sha1.Sum([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// minFolderArchiveSize is the embed count below which a folder gets no archive.
const minFolderArchiveSize = 2

// ArchiveCreate describes a pending archive the reconciler wants to exist.
type ArchiveCreate struct {
	FolderID   *string
	FolderName string
	Digest     string
}

// ArchivePlan is the outcome of diffing wanted archives against persisted alive ones.
type ArchivePlan struct {
	Creates []ArchiveCreate
	Deletes []string
}

// Empty reports whether the plan changes nothing.
func (p ArchivePlan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Deletes) == 0
}

// ReconcileArchives decides which archives should exist for one owner after its pages
// and files have been reconciled:
//
//   - every folder block (keyed by uid across all alive pages) holding at least two
//     alive file embeds gets an archive with the digest of its current contents,
//   - the whole-owner archive (folder id nil) exists while the owner both holds alive
//     files and currently owns whole-archive responsibility (ownsWhole, which flips
//     between product and variants with the shared-content mode),
//   - a digest mismatch soft-deletes the old archive and creates a fresh pending one,
//   - anything alive but no longer wanted is soft-deleted.
//
// Pages must be ordered by position so default "Untitled N" numbering follows document
// order. Folder identity is always the uid, never the display name.
func ReconcileArchives(pages []Page, files []File, archives []Archive, ownsWhole bool) (ArchivePlan, error) {
	fileByID := make(map[string]File, len(files))
	for _, file := range files {
		fileByID[file.ExternalID] = file
	}

	folders, err := collectFolders(pages)
	if err != nil {
		return ArchivePlan{}, err
	}

	type wantedArchive struct {
		folderName string
		digest     string
	}
	wanted := make(map[string]wantedArchive, len(folders))
	order := make([]string, 0, len(folders)+1)

	for _, folder := range folders {
		entries := make([]archiveEntry, 0, len(folder.FileIDs))
		for _, fileID := range folder.FileIDs {
			file, ok := fileByID[fileID]
			if !ok {
				continue
			}
			entries = append(entries, archiveEntry{
				FolderID:   folder.UID,
				FolderName: folder.Name,
				FileID:     file.ExternalID,
				FileName:   file.DisplayName,
			})
		}
		if len(entries) < minFolderArchiveSize {
			continue
		}
		if _, dup := wanted[folder.UID]; dup {
			continue
		}
		wanted[folder.UID] = wantedArchive{folderName: folder.Name, digest: computeDigest(entries)}
		order = append(order, folder.UID)
	}

	const wholeKey = ""
	if ownsWhole && len(files) > 0 {
		entries := make([]archiveEntry, 0, len(files))
		for _, file := range files {
			entries = append(entries, archiveEntry{FileID: file.ExternalID, FileName: file.DisplayName})
		}
		wanted[wholeKey] = wantedArchive{digest: computeDigest(entries)}
		order = append(order, wholeKey)
	}

	alive := make(map[string]Archive, len(archives))
	for _, archive := range archives {
		key := wholeKey
		if archive.FolderID != nil {
			key = *archive.FolderID
		}
		alive[key] = archive
	}

	var plan ArchivePlan
	for _, key := range order {
		want := wanted[key]
		existing, ok := alive[key]
		if ok && existing.Digest == want.digest {
			continue
		}
		if ok {
			plan.Deletes = append(plan.Deletes, existing.ExternalID)
		}
		create := ArchiveCreate{FolderName: want.folderName, Digest: want.digest}
		if key != wholeKey {
			folderID := key
			create.FolderID = &folderID
		}
		plan.Creates = append(plan.Creates, create)
	}

	for key, archive := range alive {
		if _, ok := wanted[key]; !ok {
			plan.Deletes = append(plan.Deletes, archive.ExternalID)
		}
	}

	return plan, nil
}

// collectFolders flattens folder blocks from every page in position order, numbering
// unnamed folders with a counter shared across the owner's pages.
func collectFolders(pages []Page) ([]Folder, error) {
	var counter UntitledCounter
	var folders []Folder

	for _, page := range pages {
		doc, err := ParseDocument(page.Description)
		if err != nil {
			return nil, err
		}
		folders = append(folders, doc.Folders(&counter)...)
	}

	return folders, nil
}
