// Package ingest turns a URL into stored Source/SourceContent/Chunk
// rows, or defers that work to the durable queue, per spec §4.5. It
// generalizes the teacher's dedup-then-insert loop
// (internal/collect/collect.go's Collect) from a batch-of-many
// operation into a single-URL operation callable both inline and from
// a queue worker.
package ingest

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
	"github.com/patrickmvla/rift-copilot/internal/reader"
	"github.com/patrickmvla/rift-copilot/internal/storage"
	"github.com/patrickmvla/rift-copilot/internal/textkit"
	"github.com/patrickmvla/rift-copilot/internal/urlcanon"
)

// Status is the outcome of an Ingest call.
type Status string

const (
	StatusExists Status = "exists"
	StatusOK     Status = "ok"
	StatusQueued Status = "queued"
)

// Outcome is the result of an Ingest call.
type Outcome struct {
	Status   Status
	SourceID string
}

// Options configures a single Ingest call.
type Options struct {
	Immediate bool
	Priority  int
}

// Ingestor reads and persists sources.
type Ingestor struct {
	db     *storage.DB
	reader *reader.Reader
}

// New constructs an Ingestor.
func New(db *storage.DB, r *reader.Reader) *Ingestor {
	return &Ingestor{db: db, reader: r}
}

// Ingest canonicalizes url and either reads it immediately or enqueues
// it for the worker, per §4.5.
func (in *Ingestor) Ingest(ctx context.Context, rawURL string, opts Options) (*Outcome, error) {
	canonical, err := urlcanon.Canonicalize(rawURL)
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "canonicalizing url", err)
	}

	if existing, err := in.db.GetSourceByURL(canonical); err != nil {
		return nil, apierr.Wrap(apierr.StorageError, "looking up source", err)
	} else if existing != nil {
		return &Outcome{Status: StatusExists, SourceID: existing.ID}, nil
	}

	if !opts.Immediate {
		if _, err := in.db.EnqueueURL(canonical, opts.Priority); err != nil {
			return nil, apierr.Wrap(apierr.StorageError, "enqueueing url", err)
		}
		return &Outcome{Status: StatusQueued}, nil
	}

	sourceID, err := in.IngestNow(ctx, canonical)
	if err != nil {
		return nil, err
	}
	return &Outcome{Status: StatusOK, SourceID: sourceID}, nil
}

// IngestNow performs the read-sanitize-chunk-persist pipeline for an
// already-canonicalized URL, shared by the immediate path and the
// queue worker.
func (in *Ingestor) IngestNow(ctx context.Context, canonicalURL string) (string, error) {
	result, err := in.reader.Read(ctx, canonicalURL, reader.Options{})
	if err != nil {
		return "", err
	}

	sanitized := textkit.Sanitize(result.Text, textkit.DefaultSanitizeOptions())
	if sanitized == "" {
		return "", apierr.New(apierr.ParserFailure, "no extractable text")
	}

	domain := urlcanon.Domain(canonicalURL)
	sourceID, err := in.db.UpsertSource(canonicalURL, domain, result.Title, nil)
	if err != nil {
		return "", apierr.Wrap(apierr.StorageError, "upserting source", err)
	}

	status := storage.SourceStatusOK
	httpStatus := result.HTTPStatus
	if err := in.db.SetSourceMetadata(sourceID, result.Title, nil, result.Lang, &httpStatus, status); err != nil {
		return "", apierr.Wrap(apierr.StorageError, "setting source metadata", err)
	}

	if err := in.db.PutSourceContent(sourceID, sanitized, result.HTML); err != nil {
		return "", apierr.Wrap(apierr.StorageError, "storing source content", err)
	}

	windows := textkit.SplitIntoWindows(sanitized, textkit.DefaultWindowOptions())
	newChunks := make([]storage.NewChunk, len(windows))
	for i, w := range windows {
		newChunks[i] = storage.NewChunk{
			CharStart: w.CharStart,
			CharEnd:   w.CharEnd,
			Text:      w.Text,
			Tokens:    w.ApproxTokens,
		}
	}
	if _, err := in.db.InsertChunks(sourceID, newChunks); err != nil {
		return "", apierr.Wrap(apierr.StorageError, "inserting chunks", err)
	}

	return sourceID, nil
}
