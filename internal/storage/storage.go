package storage

import "context"

// Object is stored binary content with its media type.
type Object struct {
	Data        []byte
	ContentType string
}

// Service stores user avatars in remote object storage.
type Service interface {
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
