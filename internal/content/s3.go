package content

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store pins bundles into an S3-compatible bucket. The content identifier
// is derived from the bundle manifest and every file is written under
// <prefix>/<cid>/<name>.
type S3Store struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Store creates an S3 store. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Store(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Store{client: s3.NewFromConfig(cfg, s3opts...), bucket: bucket, prefix: prefix}, nil
}

// Pin writes the bundle's files and metadata document.
func (s *S3Store) Pin(ctx context.Context, b *Bundle) (string, error) {
	cid := ManifestID(b)
	for _, blob := range b.Blobs {
		if err := s.put(ctx, cid, blob.Name, blob.MediaType, blob.Data); err != nil {
			return "", err
		}
	}
	if err := s.put(ctx, cid, MetadataName, "application/json", b.Metadata); err != nil {
		return "", err
	}
	return cid, nil
}

func (s *S3Store) put(ctx context.Context, cid, name, mediaType string, data []byte) error {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	key := path.Join(s.prefix, cid, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mediaType),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.UploadError{Reason: "s3 put " + key, Err: err}
	}
	return nil
}

// ManifestID derives a bundle identifier from the file names, their
// digests and the metadata bytes.
func ManifestID(b *Bundle) string {
	h := sha256.New()
	for _, blob := range b.Blobs {
		fmt.Fprintf(h, "%s\x00%s\n", blob.Name, Digest(blob.Data))
	}
	fmt.Fprintf(h, "%s\x00%s\n", MetadataName, Digest(b.Metadata))
	return "b" + hex.EncodeToString(h.Sum(nil))
}
