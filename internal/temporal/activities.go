package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"scraptrade-reports/internal/domain"
	"scraptrade-reports/internal/report"
	"scraptrade-reports/internal/storage"
)

const pdfContentType = "application/pdf"

// Application error types carried across the workflow boundary.
const (
	ErrTypeInvoiceNotFound = "InvoiceNotFound"
	ErrTypeInvalidInvoice  = "InvalidInvoice"
	ErrTypeRender          = "RenderFailed"
)

type ActivityStore interface {
	GetInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error)
	InsertDocument(ctx context.Context, rec domain.DocumentRecord) (domain.DocumentRecord, error)
	SetConsolidatedReport(ctx context.Context, invoiceID, documentID string) error
}

type BlobStore interface {
	PutDocument(ctx context.Context, objectKey string, content []byte, contentType string, meta map[string]string) error
	DeleteDocument(ctx context.Context, objectKey string) error
}

type PageResolver interface {
	ResolveAndNormalize(ctx context.Context, inv *domain.Invoice) ([]report.NormalizedPage, error)
}

type ReportAssembler interface {
	Assemble(inv *domain.Invoice, pages []report.NormalizedPage) (*report.Report, error)
}

type Activities struct {
	Store     ActivityStore
	Blob      BlobStore
	Resolver  PageResolver
	Assembler ReportAssembler
	Logger    *zap.Logger
}

type GenerateReportInput struct {
	InvoiceID   string
	RequestedAt time.Time
}

type GenerateReportOutput struct {
	InvoiceNumber      string
	DocumentID         string
	FileName           string
	ObjectKey          string
	FileSize           int64
	PageCount          int
	DocumentsProcessed int
	GeneratedAt        time.Time
}

type RecordReportInput struct {
	DocumentID string
	FileName   string
	ObjectKey  string
	FileSize   int64
}

type DeleteReportObjectInput struct {
	ObjectKey string
}

type LinkInvoiceReportInput struct {
	InvoiceID  string
	DocumentID string
}

func (a *Activities) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// GenerateReportActivity renders the consolidated PDF and uploads it. The PDF
// bytes never leave the activity; only the object key is returned.
func (a *Activities) GenerateReportActivity(ctx context.Context, input GenerateReportInput) (GenerateReportOutput, error) {
	inv, err := a.Store.GetInvoice(ctx, input.InvoiceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return GenerateReportOutput{}, temporal.NewNonRetryableApplicationError("invoice not found", ErrTypeInvoiceNotFound, err, input.InvoiceID)
		}
		return GenerateReportOutput{}, err
	}

	pages, err := a.Resolver.ResolveAndNormalize(ctx, &inv)
	if err != nil {
		if errors.Is(err, report.ErrInvalidInvoice) {
			return GenerateReportOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInvoice, err)
		}
		return GenerateReportOutput{}, fmt.Errorf("resolve documents: %w", err)
	}

	rep, err := a.Assembler.Assemble(&inv, pages)
	if err != nil {
		if errors.Is(err, report.ErrRender) {
			return GenerateReportOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRender, err)
		}
		return GenerateReportOutput{}, fmt.Errorf("assemble report: %w", err)
	}

	documentID := domain.ConsolidatedDocumentID(inv.InvoiceNumber, input.RequestedAt)
	fileName := domain.ConsolidatedFileName(inv.InvoiceNumber)
	objectKey := domain.ConsolidatedStorageKey(documentID)
	meta := map[string]string{
		storage.MetaOriginalName: fileName,
		storage.MetaDocumentID:   documentID,
	}
	if err := a.Blob.PutDocument(ctx, objectKey, rep.Bytes, pdfContentType, meta); err != nil {
		return GenerateReportOutput{}, fmt.Errorf("upload report: %w", err)
	}

	a.logger().Info("consolidated report generated",
		zap.String("invoice_id", inv.ID),
		zap.String("document_id", documentID),
		zap.Int("pages", rep.PageCount),
		zap.Int("documents", len(pages)),
	)
	return GenerateReportOutput{
		InvoiceNumber:      inv.InvoiceNumber,
		DocumentID:         documentID,
		FileName:           fileName,
		ObjectKey:          objectKey,
		FileSize:           int64(len(rep.Bytes)),
		PageCount:          rep.PageCount,
		DocumentsProcessed: len(pages),
		GeneratedAt:        rep.GeneratedAt,
	}, nil
}

func (a *Activities) RecordReportActivity(ctx context.Context, input RecordReportInput) error {
	_, err := a.Store.InsertDocument(ctx, domain.DocumentRecord{
		DocumentID:   input.DocumentID,
		FileName:     input.FileName,
		FileSize:     input.FileSize,
		MimeType:     pdfContentType,
		StorageType:  domain.StorageObject,
		StorageKey:   input.ObjectKey,
		DocumentType: domain.DocumentTypeConsolidated,
	})
	return err
}

func (a *Activities) DeleteReportObjectActivity(ctx context.Context, input DeleteReportObjectInput) error {
	err := a.Blob.DeleteDocument(ctx, input.ObjectKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func (a *Activities) LinkInvoiceReportActivity(ctx context.Context, input LinkInvoiceReportInput) error {
	err := a.Store.SetConsolidatedReport(ctx, input.InvoiceID, input.DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError("invoice not found", ErrTypeInvoiceNotFound, err, input.InvoiceID)
	}
	return err
}
