package gcsuploader

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Put writes content to bucket/object, replacing any existing object.
	Put(ctx context.Context, bucketName, objectName string, content []byte) error

	// Get reads the full content of bucket/object.
	Get(ctx context.Context, bucketName, objectName string) ([]byte, error)
}
