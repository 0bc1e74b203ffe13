// Package storage keeps published taxonomy exports in an S3-compatible
// bucket.
package storage

import (
	"context"
	"fmt"

	"specsharp/internal/taxonomy"
)

const exportContentType = "application/yaml"

// PublishExport uploads the canonical export of reg under key.
func PublishExport(ctx context.Context, store *R2Client, key string, reg *taxonomy.Registry) (string, error) {
	data, err := taxonomy.MarshalExport(reg.Export())
	if err != nil {
		return "", err
	}
	url, err := store.Put(ctx, key, exportContentType, data)
	if err != nil {
		return "", fmt.Errorf("publish taxonomy export: %w", err)
	}
	return url, nil
}

// VerifyPublished compares the local export with the copy under key.
// Formatting differences are ignored; any content difference wraps
// taxonomy.ErrExportDrift.
func VerifyPublished(ctx context.Context, store *R2Client, key string, local []byte) error {
	remote, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	return taxonomy.VerifyCopies(local, remote)
}
