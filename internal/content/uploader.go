package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/alfredjeanlab/chainreg/internal/clock"
	"github.com/alfredjeanlab/chainreg/internal/model"
)

// Uploader validates blobs, generates the metadata document and pins the
// bundle through a Store. It never retries.
type Uploader struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewUploader creates an Uploader. A nil clock uses real time.
func NewUploader(store Store, clk clock.Clock, logger *slog.Logger) *Uploader {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{store: store, clock: clk, logger: logger}
}

// Upload pins blobs plus a metadata document as one bundle and returns
// its content identifier. The metadata always gains a "timestamp" key, so
// identical inputs yield distinct identifiers.
func (u *Uploader) Upload(ctx context.Context, blobs []Blob, metadata map[string]any) (string, error) {
	for _, b := range blobs {
		if err := ValidateBlob(b); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ts := u.clock.Now().UTC().Format(time.RFC3339Nano)
	doc, err := MetadataDocument(metadata, ts)
	if err != nil {
		return "", model.NewFieldError("metadata", err.Error())
	}

	bundle := &Bundle{
		Name:      bundleName(blobs, metadata),
		Kind:      kindOf(metadata),
		Timestamp: ts,
		Blobs:     blobs,
		Metadata:  doc,
	}
	cid, err := u.store.Pin(ctx, bundle)
	if err != nil {
		var ue *model.UploadError
		if errors.As(err, &ue) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &model.UploadError{Reason: "pin bundle", Err: err}
	}
	if cid == "" {
		return "", &model.UploadError{Reason: "store returned no content identifier"}
	}
	u.logger.Debug("pinned bundle", "cid", cid, "blobs", len(blobs), "name", bundle.Name)
	return cid, nil
}

// MetadataDocument renders metadata plus timestamp as canonical JSON.
func MetadataDocument(metadata map[string]any, timestamp string) ([]byte, error) {
	m := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		m[k] = v
	}
	m["timestamp"] = timestamp
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return jcs.Transform(data)
}

func bundleName(blobs []Blob, metadata map[string]any) string {
	if s, ok := metadata["name"].(string); ok && s != "" {
		return s
	}
	if s, ok := metadata["title"].(string); ok && s != "" {
		return s
	}
	if len(blobs) > 0 {
		return blobs[0].Name
	}
	return MetadataName
}

func kindOf(metadata map[string]any) string {
	if s, ok := metadata["type"].(string); ok {
		return s
	}
	return ""
}
