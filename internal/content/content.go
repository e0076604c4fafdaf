// Package content pins asset files and their metadata documents in a
// content-addressed store.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// Role tags a blob with the limits that apply to it.
type Role string

const (
	RolePrimary  Role = "primary"  // the registered asset file
	RoleImage    Role = "image"    // event image or banner
	RoleDocument Role = "document" // custom licence document
	RoleMetadata Role = "metadata" // generated
)

func (r Role) String() string { return string(r) }

const (
	MiB = 1 << 20

	MaxPrimaryBytes  = 10 * MiB
	MaxImageBytes    = 5 * MiB
	MaxDocumentBytes = 5 * MiB

	// MetadataName is the bundle entry holding the metadata document.
	MetadataName = "metadata.json"
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Blob is one named file in an upload.
type Blob struct {
	Name      string
	Data      []byte
	MediaType string
	Role      Role
}

// Bundle is everything pinned under a single content identifier.
type Bundle struct {
	Name      string // display name recorded with the pin
	Kind      string // free-form type tag recorded with the pin
	Timestamp string // copied from the metadata document
	Blobs     []Blob
	Metadata  []byte
}

// Store pins a bundle and returns its content identifier.
type Store interface {
	Pin(ctx context.Context, b *Bundle) (string, error)
}

// ValidateBlob checks a blob against the limits for its role.
func ValidateBlob(b Blob) error {
	field := string(b.Role)
	if field == "" {
		field = "blob"
	}
	if strings.TrimSpace(b.Name) == "" {
		return model.NewFieldError(field, "file name is required")
	}
	if len(b.Data) == 0 {
		return model.NewFieldError(field, "file is empty")
	}

	var limit int
	switch b.Role {
	case RolePrimary:
		limit = MaxPrimaryBytes
	case RoleImage:
		limit = MaxImageBytes
		if !imageTypes[strings.ToLower(b.MediaType)] {
			return model.NewFieldError(field, fmt.Sprintf("unsupported image type %q (allowed: jpeg, png, webp)", b.MediaType))
		}
	case RoleDocument:
		limit = MaxDocumentBytes
	default:
		return model.NewFieldError(field, fmt.Sprintf("invalid role %q", b.Role))
	}
	if len(b.Data) > limit {
		return model.NewFieldError(field, fmt.Sprintf("file is %d bytes, limit is %d MiB", len(b.Data), limit/MiB))
	}
	return nil
}

// Digest returns the lowercase hex SHA-256 of data. This is the on-ledger
// content hash, independent of the store's identifier.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GatewayURL builds a read URL for cid, optionally for a named file inside it.
func GatewayURL(gateway, cid, name string) string {
	u := strings.TrimRight(gateway, "/") + "/ipfs/" + cid
	if name != "" {
		u += "/" + name
	}
	return u
}
