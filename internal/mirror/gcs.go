package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSMirror stores each document as a JSON object "collection/key.json" in one bucket.
type GCSMirror struct {
	client *storage.Client
	bucket string
}

// NewGCSMirror creates a GCS-backed mirror. credentialsFile may be empty, in which case
// application default credentials are used.
func NewGCSMirror(ctx context.Context, bucket, credentialsFile string) (*GCSMirror, error) {
	if bucket == "" {
		return nil, errors.New("MIRROR_GCS_BUCKET is required for the gcs mirror backend")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSMirror{client: client, bucket: bucket}, nil
}

func objectName(collection, key string) string {
	return collection + "/" + key + ".json"
}

func (m *GCSMirror) Upsert(ctx context.Context, collection, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return mirrorErr("encode document", err)
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	writer := m.client.Bucket(m.bucket).Object(objectName(collection, key)).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return mirrorErr("upsert", err)
	}
	if err := writer.Close(); err != nil {
		return mirrorErr("upsert", err)
	}
	return nil
}

func (m *GCSMirror) Get(ctx context.Context, collection, key string, dst any) (bool, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	reader, err := m.client.Bucket(m.bucket).Object(objectName(collection, key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, mirrorErr("get", err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return false, mirrorErr("get", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, mirrorErr("decode document", err)
	}
	return true, nil
}

func (m *GCSMirror) Close() error {
	return m.client.Close()
}
