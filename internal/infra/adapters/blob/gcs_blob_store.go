// File: internal/infra/adapters/blob/gcs_blob_store.go
package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

var _ adapter.BlobStore = (*GCSBlobStore)(nil)

// GCSBlobStore implements the storage collaborator spec.md §6 treats as
// out of scope: it produces and consumes signed URLs against a single
// bucket, namespacing every object under the owner's id so cross-owner
// access is structurally impossible rather than merely checked.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
	cfg    config.BlobConfig
}

func NewGCSBlobStore(client *storage.Client, cfg config.BlobConfig) *GCSBlobStore {
	return &GCSBlobStore{client: client, bucket: cfg.Bucket, cfg: cfg}
}

func objectPrefix(ownerID string) string {
	return fmt.Sprintf("uploads/%s", ownerID)
}

func resultPrefix(ownerID string) string {
	return fmt.Sprintf("results/%s", ownerID)
}

// PutResult stores a worker's restored image under the result namespace, kept
// under its own retention window (spec.md §6: results retained M days,
// originals N days).
func (s *GCSBlobStore) PutResult(ctx context.Context, ownerID, contentType string, body []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s", resultPrefix(ownerID), uuid.NewString())
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return objectName, nil
}

func (s *GCSBlobStore) IssueUploadURL(ctx context.Context, ownerID, contentType string) (adapter.UploadTarget, error) {
	if !allowedContentType(contentType) {
		return adapter.UploadTarget{}, domain.ErrUnsupportedMediaType
	}
	objectName := fmt.Sprintf("%s/%s", objectPrefix(ownerID), uuid.NewString())
	expiresAt := time.Now().Add(s.cfg.UploadTTL)

	url, err := s.client.Bucket(s.bucket).SignedURL(objectName, &storage.SignedURLOptions{
		Method:      "PUT",
		Expires:     expiresAt,
		ContentType: contentType,
		Scheme:      storage.SigningSchemeV4,
	})
	if err != nil {
		return adapter.UploadTarget{}, fmt.Errorf("sign upload url: %w", err)
	}

	return adapter.UploadTarget{URL: url, ObjectName: objectName, ExpiresAt: expiresAt, ContentType: contentType}, nil
}

func (s *GCSBlobStore) IssueDownloadURL(ctx context.Context, ownerID, objectName, filename string) (adapter.DownloadTarget, error) {
	if !s.owns(ownerID, objectName) {
		return adapter.DownloadTarget{}, domain.ErrForbidden
	}
	expiresAt := time.Now().Add(s.cfg.DownloadTTL)

	url, err := s.client.Bucket(s.bucket).SignedURL(objectName, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: expiresAt,
		Scheme:  storage.SigningSchemeV4,
		QueryParameters: map[string][]string{
			"response-content-disposition": {fmt.Sprintf(`attachment; filename="%s"`, filename)},
		},
	})
	if err != nil {
		return adapter.DownloadTarget{}, fmt.Errorf("sign download url: %w", err)
	}
	return adapter.DownloadTarget{URL: url, ExpiresAt: expiresAt}, nil
}

func (s *GCSBlobStore) Download(ctx context.Context, ownerID, objectName string) ([]byte, error) {
	if !s.owns(ownerID, objectName) {
		return nil, domain.ErrForbidden
	}
	r, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSBlobStore) Put(ctx context.Context, ownerID, contentType string, body []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s", objectPrefix(ownerID), uuid.NewString())
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return objectName, nil
}

func (s *GCSBlobStore) owns(ownerID, objectName string) bool {
	for _, prefix := range []string{objectPrefix(ownerID) + "/", resultPrefix(ownerID) + "/"} {
		if len(objectName) > len(prefix) && objectName[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func allowedContentType(ct string) bool {
	switch ct {
	case "image/jpeg", "image/png", "image/webp":
		return true
	default:
		return false
	}
}
