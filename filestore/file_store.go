// Package filestore is the object storage collaborator: media bytes go in,
// a publicly fetchable url comes out.
package filestore

import "io"

type UploadedFileStore interface {
	// Upload stores the body under the given path and returns the storage
	// key.
	Upload(path string, body io.Reader, contentType string) (key string, err error)

	// GetUrlFromKey resolves a storage key to a public url.
	GetUrlFromKey(key string) string
}
