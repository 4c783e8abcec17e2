package archiver

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/content"
	"merchkit/app/internal/storage"
)

// FileFetcher resolves a persisted file's bytes for inclusion in a zip.
type FileFetcher interface {
	Fetch(ctx context.Context, file content.File) (io.ReadCloser, error)
}

// Options configures the archive generation worker.
type Options struct {
	Repository   content.Repository
	Blobs        storage.BlobStore
	Fetcher      FileFetcher
	Logger       *logrus.Logger
	SentryHub    *sentry.Hub
	PollInterval time.Duration
}

// Worker drains the pending archive queue: for each pending archive it gathers the
// constituent files, writes a zip to the blob store and advances the archive from
// pending through in_progress to ready. The reconciler decides which archives exist;
// the worker only produces bytes.
type Worker struct {
	repo      content.Repository
	blobs     storage.BlobStore
	fetcher   FileFetcher
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	poll      time.Duration
}

// NewWorker constructs the archive worker.
func NewWorker(opts Options) (*Worker, error) {
	if opts.Repository == nil {
		return nil, eris.New("content repository is required")
	}
	if opts.Blobs == nil {
		return nil, eris.New("blob store is required")
	}
	if opts.Fetcher == nil {
		return nil, eris.New("file fetcher is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}

	return &Worker{
		repo:      opts.Repository,
		blobs:     opts.Blobs,
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		poll:      opts.PollInterval,
	}, nil
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain processes pending archives until the queue is empty or the context ends.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.recordError(nil, err, "processing pending archive")
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext generates the oldest pending archive. It returns false when the queue is
// empty. A generation failure resets the archive to pending so a later tick retries it.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	archive, err := w.repo.NextPendingArchive(ctx)
	if err != nil {
		return false, err
	}
	if archive == nil {
		return false, nil
	}

	if err := w.repo.UpdateArchiveStatus(ctx, archive.ExternalID, content.ArchiveInProgress, ""); err != nil {
		return false, err
	}

	blobKey, err := w.generate(ctx, archive)
	if err != nil {
		if resetErr := w.repo.UpdateArchiveStatus(ctx, archive.ExternalID, content.ArchivePending, ""); resetErr != nil {
			w.recordError(logrus.Fields{"archive_id": archive.ExternalID}, resetErr, "resetting failed archive")
		}
		return false, eris.Wrapf(err, "generating archive: %s", archive.ExternalID)
	}

	if err := w.repo.UpdateArchiveStatus(ctx, archive.ExternalID, content.ArchiveReady, blobKey); err != nil {
		return false, err
	}

	if w.logger != nil {
		w.logger.WithFields(logrus.Fields{
			"archive_id": archive.ExternalID,
			"blob_key":   blobKey,
		}).Info("archive generated")
	}

	return true, nil
}

// generate zips the archive's files and stores the result. The zip is assembled in
// memory; archives bundle at most a product's attachments, not arbitrary datasets.
func (w *Worker) generate(ctx context.Context, archive *content.Archive) (string, error) {
	files, err := w.archiveFiles(ctx, archive)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	used := make(map[string]int, len(files))

	for _, file := range files {
		entry, err := writer.Create(entryName(file, used))
		if err != nil {
			return "", eris.Wrap(err, "creating zip entry")
		}

		body, err := w.fetcher.Fetch(ctx, file)
		if err != nil {
			return "", eris.Wrapf(err, "fetching file: %s", file.ExternalID)
		}
		_, copyErr := io.Copy(entry, body)
		body.Close()
		if copyErr != nil {
			return "", eris.Wrapf(copyErr, "writing file into zip: %s", file.ExternalID)
		}
	}

	if err := writer.Close(); err != nil {
		return "", eris.Wrap(err, "finalizing zip")
	}

	blobKey := fmt.Sprintf("archives/%s.zip", archive.ExternalID)
	if err := w.blobs.Put(ctx, blobKey, &buf); err != nil {
		return "", eris.Wrapf(err, "storing archive blob: %s", blobKey)
	}

	return blobKey, nil
}

// archiveFiles resolves which alive files belong in the archive: all of the owner's
// files for a whole-owner archive, or the folder's embeds for a folder archive.
func (w *Worker) archiveFiles(ctx context.Context, archive *content.Archive) ([]content.File, error) {
	owner := archive.Owner()

	files, err := w.repo.FilesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if archive.FolderID == nil {
		return files, nil
	}

	pages, err := w.repo.PagesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	var wanted []string
	var counter content.UntitledCounter
	for _, page := range pages {
		doc, err := content.ParseDocument(page.Description)
		if err != nil {
			return nil, err
		}
		for _, folder := range doc.Folders(&counter) {
			if folder.UID == *archive.FolderID {
				wanted = append(wanted, folder.FileIDs...)
			}
		}
	}

	byExternalID := make(map[string]content.File, len(files))
	for _, file := range files {
		byExternalID[file.ExternalID] = file
	}

	selected := make([]content.File, 0, len(wanted))
	for _, fileID := range wanted {
		if file, ok := byExternalID[fileID]; ok {
			selected = append(selected, file)
		}
	}

	return selected, nil
}

// entryName builds the in-zip filename, deduplicating repeated display names.
func entryName(file content.File, used map[string]int) string {
	name := file.DisplayName
	if name == "" {
		name = file.ExternalID
	}
	if file.Extension != "" {
		name = fmt.Sprintf("%s.%s", name, file.Extension)
	}

	used[name]++
	if used[name] > 1 {
		base, ext := name, ""
		if file.Extension != "" {
			base = name[:len(name)-len(file.Extension)-1]
			ext = "." + file.Extension
		}
		name = fmt.Sprintf("%s (%d)%s", base, used[name]-1, ext)
	}

	return name
}

func (w *Worker) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if w.logger != nil {
		entry := w.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if w.sentryHub != nil {
		w.sentryHub.CaptureException(err)
	}
}
