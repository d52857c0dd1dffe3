package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scraptrade-reports/internal/domain"
)

var (
	ErrInvalidInvoice = errors.New("invalid invoice")
	ErrNotAvailable   = errors.New("document not available")
)

const defaultFetchTimeout = 20 * time.Second

// Catalog resolves document identifiers to metadata records.
type Catalog interface {
	GetDocumentByDocumentID(ctx context.Context, documentID string) (domain.DocumentRecord, error)
}

// BlobStore reads document bytes by storage key.
type BlobStore interface {
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
}

type Resolver struct {
	catalog      Catalog
	blobs        BlobStore
	logger       *zap.Logger
	fetchTimeout time.Duration
}

func NewResolver(catalog Catalog, blobs BlobStore, logger *zap.Logger, fetchTimeout time.Duration) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Resolver{
		catalog:      catalog,
		blobs:        blobs,
		logger:       logger,
		fetchTimeout: fetchTimeout,
	}
}

type reference struct {
	slot       domain.Slot
	documentID string
}

func references(inv *domain.Invoice) []reference {
	refs := make([]reference, 0, len(domain.ReportSlots))
	for _, slot := range domain.ReportSlots {
		if id := inv.SlotRef(slot); id != nil {
			refs = append(refs, reference{slot: slot, documentID: *id})
		}
	}
	return refs
}

// ResolveAndNormalize renders one page per populated document slot, in slot
// order. Per-document failures become placeholder pages; only an invalid
// invoice or a placeholder that cannot be drawn is returned as an error.
func (r *Resolver) ResolveAndNormalize(ctx context.Context, inv *domain.Invoice) ([]NormalizedPage, error) {
	if err := domain.ValidateInvoiceForReport(inv); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInvoice, err)
	}

	refs := references(inv)
	pages := make([]NormalizedPage, len(refs))
	if len(refs) == 0 {
		return pages, nil
	}

	// No derived context: one failed slot must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(len(refs))
	for i, ref := range refs {
		g.Go(func() error {
			page, err := r.normalize(ctx, ref)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("normalized invoice documents",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("documents", len(pages)),
	)
	return pages, nil
}

func (r *Resolver) normalize(ctx context.Context, ref reference) (NormalizedPage, error) {
	label := ref.slot.Label()
	log := r.logger.With(zap.String("slot", string(ref.slot)), zap.String("document_id", ref.documentID))

	rec, data, err := r.fetch(ctx, ref.documentID)
	if err != nil {
		log.Warn("document unavailable, using placeholder", zap.Error(err))
		return r.missingPage(ref.slot, label)
	}

	if !isImage(rec.MimeType) {
		log.Info("non-image document shown as reference only",
			zap.String("file_name", rec.FileName),
			zap.String("mime_type", rec.MimeType),
		)
		img, err := DrawReferencePlaceholder(label, rec.FileName, rec.MimeType)
		if err != nil {
			return NormalizedPage{}, fmt.Errorf("draw reference placeholder for %s: %w", ref.slot, err)
		}
		return NormalizedPage{
			Slot:     ref.slot,
			Label:    label,
			FileName: rec.FileName,
			MimeType: rec.MimeType,
			Image:    img,
			Format:   FormatPNG,
			Kind:     KindNonImagePlaceholder,
		}, nil
	}

	img, err := FitToCanvas(data)
	if err != nil {
		log.Warn("image could not be decoded, using placeholder", zap.String("file_name", rec.FileName), zap.Error(err))
		return r.missingPage(ref.slot, label)
	}
	return NormalizedPage{
		Slot:     ref.slot,
		Label:    label,
		FileName: rec.FileName,
		MimeType: rec.MimeType,
		Image:    img,
		Format:   FormatJPEG,
		Kind:     KindRealImage,
	}, nil
}

func (r *Resolver) fetch(ctx context.Context, documentID string) (domain.DocumentRecord, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	rec, err := r.catalog.GetDocumentByDocumentID(ctx, documentID)
	if err != nil {
		return domain.DocumentRecord{}, nil, fmt.Errorf("resolve metadata: %w", err)
	}
	if rec.StorageType != domain.StorageObject {
		return domain.DocumentRecord{}, nil, fmt.Errorf("storage type %q: %w", rec.StorageType, ErrNotAvailable)
	}
	if rec.StorageKey == "" {
		return domain.DocumentRecord{}, nil, fmt.Errorf("empty storage key: %w", ErrNotAvailable)
	}

	data, err := r.blobs.GetDocument(ctx, rec.StorageKey)
	if err != nil {
		return domain.DocumentRecord{}, nil, fmt.Errorf("fetch %s: %w", rec.StorageKey, err)
	}
	if len(data) == 0 {
		return domain.DocumentRecord{}, nil, fmt.Errorf("fetch %s: empty body: %w", rec.StorageKey, ErrNotAvailable)
	}
	return rec, data, nil
}

func (r *Resolver) missingPage(slot domain.Slot, label string) (NormalizedPage, error) {
	img, err := DrawMissingPlaceholder(label)
	if err != nil {
		return NormalizedPage{}, fmt.Errorf("draw missing placeholder for %s: %w", slot, err)
	}
	return NormalizedPage{
		Slot:     slot,
		Label:    label,
		FileName: "placeholder.png",
		Image:    img,
		Format:   FormatPNG,
		Kind:     KindMissingPlaceholder,
	}, nil
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
