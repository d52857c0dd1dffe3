package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrEmptyObject = errors.New("object is empty")
)

// Object metadata keys written alongside uploaded documents.
const (
	MetaOriginalName = "original-name"
	MetaDocumentID   = "document-id"
)

type MinioStore struct {
	client *minio.Client
	bucket string
}

type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
	Metadata    map[string]string
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (m *MinioStore) Client() *minio.Client {
	return m.client
}

func (m *MinioStore) Bucket() string {
	return m.bucket
}

func (m *MinioStore) PutDocument(ctx context.Context, objectKey string, content []byte, contentType string, meta map[string]string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "3600",
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return nil
}

// GetDocument reads a whole object. Missing objects map to ErrNotFound and
// zero-length objects to ErrEmptyObject.
func (m *MinioStore) GetDocument(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(objectKey, err)
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, mapMinioError(objectKey, err)
	}
	if data.Len() == 0 {
		return nil, fmt.Errorf("object %s: %w", objectKey, ErrEmptyObject)
	}
	return data.Bytes(), nil
}

func (m *MinioStore) DeleteDocument(ctx context.Context, objectKey string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return mapMinioError(objectKey, err)
	}
	return nil
}

func (m *MinioStore) StatDocument(ctx context.Context, objectKey string) (ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapMinioError(objectKey, err)
	}
	meta := make(map[string]string, len(info.UserMetadata))
	for k, v := range info.UserMetadata {
		meta[strings.ToLower(k)] = v
	}
	return ObjectInfo{
		Key:         objectKey,
		ContentType: info.ContentType,
		Size:        info.Size,
		Metadata:    meta,
	}, nil
}

func mapMinioError(objectKey string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("object %s: %w", objectKey, ErrNotFound)
	}
	return fmt.Errorf("object %s: %w", objectKey, err)
}
