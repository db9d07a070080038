// Package upload implements the upload gateway: authenticated owners write
// to remote blob storage, guests get a self-contained encoded reference that
// survives a local-only persistence round trip.
package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/RafaelMokgaha/Blouconnectapplication/internal/models"
	"github.com/RafaelMokgaha/Blouconnectapplication/internal/remote"
)

// File is the binary payload handed to the gateway.
type File struct {
	Name string
	Data []byte
}

// BlobStore writes a blob and returns its durable reference URL.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Gateway routes uploads to remote blob storage or to local data-URI
// encoding depending on the owner's authentication state.
type Gateway struct {
	blobs BlobStore
	files remote.FileStore
	log   zerolog.Logger
}

// NewGateway creates a new upload Gateway. blobs and files may be nil for a
// client running without remote credentials; every upload then takes the
// encoding path.
func NewGateway(blobs BlobStore, files remote.FileStore, log zerolog.Logger) *Gateway {
	return &Gateway{blobs: blobs, files: files, log: log}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// Upload stores the file for the given owner and returns an opaque reference
// suitable for direct embedding. Guest and unauthenticated owners never reach
// the remote store; an authorization failure on the remote path falls back to
// the same encoding rather than surfacing an error.
func (g *Gateway) Upload(ctx context.Context, file File, ownerID, notes string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("owner ID is required for upload")
	}

	if models.IsGuestID(ownerID) || g.blobs == nil {
		g.log.Debug().Str("owner", ownerID).Msg("guest upload, encoding file locally")
		return encodeDataURI(file.Data), nil
	}

	now := time.Now().UnixMilli()
	safeName := unsafeNameChars.ReplaceAllString(file.Name, "_")
	storagePath := fmt.Sprintf("user_uploads/%s/%d_%s", ownerID, now, safeName)
	contentType := mimetype.Detect(file.Data).String()

	url, err := g.blobs.Put(ctx, storagePath, file.Data, contentType)
	if err != nil {
		if remote.IsPermissionDenied(err) {
			// Restricted-permission deployments still get a working upload.
			g.log.Debug().Str("owner", ownerID).Msg("blob upload denied, encoding file locally")
			return encodeDataURI(file.Data), nil
		}
		return "", fmt.Errorf("error uploading file: %w", err)
	}

	// Metadata sync is best-effort: storage can allow the write while the
	// database denies it, and the blob URL is already durable.
	if g.files != nil {
		meta := &remote.FileMetadata{
			Name:        file.Name,
			StoragePath: storagePath,
			URL:         url,
			ContentType: contentType,
			Size:        int64(len(file.Data)),
			Notes:       notes,
			Timestamp:   now,
		}
		if err := g.files.Add(ctx, ownerID, meta); err != nil {
			g.log.Warn().Err(err).Str("owner", ownerID).Msg("upload metadata sync failed, blob upload succeeded")
		}
	}

	return url, nil
}

// encodeDataURI packs the payload into a self-contained data URI so the
// reference remains valid after an app restart with only local persistence.
func encodeDataURI(data []byte) string {
	mime := mimetype.Detect(data).String()
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
