package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scraptrade-reports/internal/domain"
	"scraptrade-reports/internal/storage"
)

type objectStat interface {
	StatDocument(ctx context.Context, objectKey string) (storage.ObjectInfo, error)
}

type documentCatalog interface {
	GetDocumentByDocumentID(ctx context.Context, documentID string) (domain.DocumentRecord, error)
	InsertDocument(ctx context.Context, rec domain.DocumentRecord) (domain.DocumentRecord, error)
}

// CatalogSync backfills catalog rows for document objects that were written
// to the bucket without going through the upload endpoint.
type CatalogSync struct {
	objects objectStat
	catalog documentCatalog
	logger  *zap.Logger
	delay   time.Duration
}

func NewCatalogSync(objects objectStat, catalog documentCatalog, logger *zap.Logger, delay time.Duration) *CatalogSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogSync{objects: objects, catalog: catalog, logger: logger, delay: delay}
}

// Handle inserts a row for the object unless one exists. The delay lets an
// in-flight upload request write its own row first.
func (s *CatalogSync) Handle(ctx context.Context, ev ObjectCreated) error {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	info, err := s.objects.StatDocument(ctx, ev.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("object removed before sync", zap.String("object_key", ev.ObjectKey))
			return nil
		}
		return fmt.Errorf("stat %s: %w", ev.ObjectKey, err)
	}

	documentID := info.Metadata[storage.MetaDocumentID]
	if documentID == "" {
		s.logger.Debug("object has no document id", zap.String("object_key", ev.ObjectKey))
		return nil
	}

	_, err = s.catalog.GetDocumentByDocumentID(ctx, documentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	fileName := info.Metadata[storage.MetaOriginalName]
	if fileName == "" {
		fileName = ev.FileName
	}
	rec, err := s.catalog.InsertDocument(ctx, domain.DocumentRecord{
		DocumentID:   documentID,
		FileName:     fileName,
		FileSize:     info.Size,
		MimeType:     info.ContentType,
		StorageType:  domain.StorageObject,
		StorageKey:   ev.ObjectKey,
		DocumentType: ev.DocumentType,
	})
	if err != nil {
		return fmt.Errorf("catalog %s: %w", ev.ObjectKey, err)
	}

	s.logger.Info("catalogued object",
		zap.String("document_id", rec.DocumentID),
		zap.String("object_key", rec.StorageKey),
		zap.String("event", ev.EventName),
	)
	return nil
}
