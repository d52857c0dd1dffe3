package events

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"scraptrade-reports/internal/domain"
)

const (
	objectCreatedEvent = "s3:ObjectCreated:*"
	documentsPrefix    = "documents/"
)

type ObjectCreated struct {
	ObjectKey    string
	DocumentType domain.DocumentType
	FileName     string
	Size         int64
	EventName    string
}

type ObjectEventSource interface {
	Run(ctx context.Context, handler func(context.Context, ObjectCreated) error) error
}

type MinioObjectEventSource struct {
	client *minio.Client
	bucket string
}

func NewMinioObjectEventSource(client *minio.Client, bucket string) *MinioObjectEventSource {
	return &MinioObjectEventSource{client: client, bucket: bucket}
}

func (s *MinioObjectEventSource) Run(ctx context.Context, handler func(context.Context, ObjectCreated) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, documentsPrefix, "", []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				docType, fileName, err := parseObjectKey(objectKey)
				if err != nil {
					continue
				}
				event := ObjectCreated{
					ObjectKey:    objectKey,
					DocumentType: docType,
					FileName:     fileName,
					Size:         record.S3.Object.Size,
					EventName:    record.EventName,
				}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseObjectKey splits documents/<type>/<file>. Unknown type directories map
// to "other".
func parseObjectKey(objectKey string) (domain.DocumentType, string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	if !strings.HasPrefix(cleaned, documentsPrefix) {
		return "", "", fmt.Errorf("object key %q is outside %s", objectKey, documentsPrefix)
	}
	parts := strings.SplitN(strings.TrimPrefix(cleaned, documentsPrefix), "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("object key %q does not match documents/type/file", objectKey)
	}
	dir := strings.TrimSpace(parts[0])
	fileName := strings.TrimSpace(path.Base(parts[1]))
	if dir == "" || fileName == "" || fileName == "." {
		return "", "", fmt.Errorf("object key %q missing document type or file name", objectKey)
	}

	docType := domain.DocumentType(dir)
	switch docType {
	case domain.DocumentTypeSale, domain.DocumentTypePurchase, domain.DocumentTypeToll,
		domain.DocumentTypeWeightReport, domain.DocumentTypeClassification:
	default:
		docType = domain.DocumentTypeOther
	}
	return docType, fileName, nil
}
