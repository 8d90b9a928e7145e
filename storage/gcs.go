package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"captionkit/logger"
)

// GCS stores blobs in a Google Cloud Storage bucket.
type GCS struct {
	client    *storage.Client
	bucket    string
	cdnDomain string
	log       *logger.Logger
}

// NewGCS creates a bucket-backed store using application default credentials
// unless opts say otherwise.
func NewGCS(ctx context.Context, bucket, cdnDomain string, log *logger.Logger, opts ...option.ClientOption) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("missing GCS bucket name")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{
		client:    client,
		bucket:    bucket,
		cdnDomain: strings.TrimSuffix(cdnDomain, "/"),
		log:       logger.OrNop(log).With("store", "gcs", "bucket", bucket),
	}, nil
}

func (g *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	g.log.Debug("uploaded artifact", "key", key, "contentType", contentType)
	return nil
}

// URL returns the CDN URL when one is configured, else the public
// storage.googleapis.com URL.
func (g *GCS) URL(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if g.cdnDomain != "" {
		domain := g.cdnDomain
		if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
			domain = "https://" + domain
		}
		return domain + "/" + key, nil
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key), nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}
