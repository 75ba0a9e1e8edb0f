// Package objectstore abstracts the GCS buckets the annotation pipeline
// reads and writes. The Store interface keeps the session and pdfops
// layers testable against an in-memory implementation.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/diatomlab/diatom-annotator/internal/errors"
	"github.com/diatomlab/diatom-annotator/internal/logging"
)

var logger = logging.ForService("objectstore")

// ErrObjectNotExist is returned by Download and Delete when the named
// object is absent from the bucket.
var ErrObjectNotExist = storage.ErrObjectNotExist

// Store is the minimal object storage surface the pipeline needs.
type Store interface {
	// Download returns the full contents of bucket/object.
	Download(ctx context.Context, bucket, object string) ([]byte, error)
	// Upload writes data to bucket/object with the given content type.
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error
	// List returns the object names under prefix, in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	// Exists reports whether bucket/object is present.
	Exists(ctx context.Context, bucket, object string) (bool, error)
	// Delete removes bucket/object.
	Delete(ctx context.Context, bucket, object string) error
	// Close releases the underlying client.
	Close() error
}

// GCSStore implements Store on Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
}

// NewGCS creates a GCS-backed store. An empty credentials path falls back
// to application default credentials.
func NewGCS(ctx context.Context, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.New(err).
			Component("objectstore").
			Category(errors.CategoryObjectStorage).
			Context("operation", "new_client").
			Build()
	}
	return &GCSStore{client: client}, nil
}

// Download returns the full contents of bucket/object.
func (s *GCSStore) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, wrapObjectErr(err, "download", bucket, object)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, wrapObjectErr(err, "download", bucket, object)
	}
	logger.Debug("downloaded object", "bucket", bucket, "object", object, "bytes", len(data))
	return data, nil
}

// Upload writes data to bucket/object.
func (s *GCSStore) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	writer := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return wrapObjectErr(err, "upload", bucket, object)
	}
	if err := writer.Close(); err != nil {
		return wrapObjectErr(err, "upload", bucket, object)
	}
	logger.Debug("uploaded object", "bucket", bucket, "object", object, "bytes", len(data))
	return nil
}

// List returns the object names under prefix.
func (s *GCSStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var names []string
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrapObjectErr(err, "list", bucket, prefix)
		}
		// Directory placeholders are not objects.
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Exists reports whether bucket/object is present.
func (s *GCSStore) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, wrapObjectErr(err, "stat", bucket, object)
	}
	return true, nil
}

// Delete removes bucket/object.
func (s *GCSStore) Delete(ctx context.Context, bucket, object string) error {
	if err := s.client.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return wrapObjectErr(err, "delete", bucket, object)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// PublicURL returns the unauthenticated HTTPS URL of bucket/object, the
// form stored as image_url in paper documents.
func PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}

func wrapObjectErr(err error, operation, bucket, object string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		// Keep the sentinel reachable through errors.Is for callers that
		// treat a missing object as a normal condition.
		return fmt.Errorf("%s %s/%s: %w", operation, bucket, object, err)
	}
	return errors.New(err).
		Component("objectstore").
		Category(errors.CategoryObjectStorage).
		Context("operation", operation).
		Context("bucket", bucket).
		Context("object", object).
		Build()
}
