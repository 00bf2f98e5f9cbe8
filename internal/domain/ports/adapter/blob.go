package adapter

import (
	"context"
	"time"
)

// UploadTarget is returned to a client that wants to push a source image
// directly to storage (spec.md §4.1 ISSUE_UPLOAD_TARGET).
type UploadTarget struct {
	URL         string
	ObjectName  string
	ExpiresAt   time.Time
	ContentType string
}

// DownloadTarget is a time-limited signed link to a stored object (spec.md §4.8).
type DownloadTarget struct {
	URL       string
	ExpiresAt time.Time
}

// BlobStore is the out-of-scope storage collaborator (spec.md §6): "produces
// and consumes signed URLs." Object names are owner-scoped by convention
// (ownerID/uuid); implementations enforce that download and issue-download
// only ever operate on objects under the caller's own prefix.
type BlobStore interface {
	IssueUploadURL(ctx context.Context, ownerID, contentType string) (UploadTarget, error)
	IssueDownloadURL(ctx context.Context, ownerID, objectName, filename string) (DownloadTarget, error)
	Download(ctx context.Context, ownerID, objectName string) ([]byte, error)
	// Put uploads bytes taken during admission (e.g. an inline multipart
	// image) so the queue task can carry only a reference (spec.md §9).
	Put(ctx context.Context, ownerID, contentType string, body []byte) (objectName string, err error)
	// PutResult stores a worker's restored image under a namespace distinct
	// from source uploads, each with its own retention window (spec.md §6).
	PutResult(ctx context.Context, ownerID, contentType string, body []byte) (objectName string, err error)
}
