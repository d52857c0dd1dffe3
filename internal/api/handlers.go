package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"scraptrade-reports/internal/config"
	"scraptrade-reports/internal/domain"
	"scraptrade-reports/internal/storage"
	appTemporal "scraptrade-reports/internal/temporal"
)

// ReportGenerator runs the consolidated report workflow for one invoice.
type ReportGenerator interface {
	Generate(ctx context.Context, invoiceID string) (appTemporal.ReportWorkflowResult, error)
}

type catalogStore interface {
	Ping(ctx context.Context) error
	GetInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error)
	ClearConsolidatedReport(ctx context.Context, invoiceID string) error
	LookupDocument(ctx context.Context, ref string) (domain.DocumentLookup, error)
	GetDocumentByDocumentID(ctx context.Context, documentID string) (domain.DocumentRecord, error)
	InsertDocument(ctx context.Context, rec domain.DocumentRecord) (domain.DocumentRecord, error)
	DeleteDocument(ctx context.Context, id string) error
	InvoicesReferencing(ctx context.Context, documentID string) ([]domain.InvoiceRef, error)
}

type blobStore interface {
	PutDocument(ctx context.Context, objectKey string, content []byte, contentType string, meta map[string]string) error
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
	DeleteDocument(ctx context.Context, objectKey string) error
}

type Handler struct {
	cfg     config.Config
	store   catalogStore
	blob    blobStore
	reports ReportGenerator
	logger  *zap.Logger
	now     func() time.Time

	inflight singleflight.Group
}

type documentMetadataResponse struct {
	domain.DocumentRecord
	SizeFormatted string              `json:"size_formatted"`
	Invoices      []domain.InvoiceRef `json:"invoices"`
	CanView       bool                `json:"can_view"`
	CanDelete     bool                `json:"can_delete"`
}

type generateResponse struct {
	Success            bool      `json:"success"`
	WorkflowID         string    `json:"workflow_id"`
	InvoiceID          string    `json:"invoice_id"`
	DocumentID         string    `json:"document_id"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
	PageCount          int       `json:"page_count"`
	DocumentsProcessed int       `json:"documents_processed"`
	Linked             bool      `json:"linked"`
	GeneratedAt        time.Time `json:"generated_at"`
}

func NewHandler(cfg config.Config, store catalogStore, blob blobStore, reports ReportGenerator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		store:   store,
		blob:    blob,
		reports: reports,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.AllowedUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart payload"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file form field is required"})
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read file"})
		return
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file exceeds size limit"})
		return
	}

	docType := domain.DocumentType(strings.TrimSpace(r.FormValue("document_type")))
	if docType == "" {
		docType = domain.DocumentTypeOther
	}
	contentType, ext := detectContentType(header.Header.Get("Content-Type"), header.Filename, body)

	if err := domain.ValidateUpload(domain.UploadRequest{
		FileName:     header.Filename,
		MimeType:     contentType,
		DocumentType: docType,
		Size:         int64(len(body)),
	}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	documentID := domain.NewDocumentID(docType, h.now(), uuid.NewString())
	objectKey := fmt.Sprintf("documents/%s/%s%s", docType, uuid.NewString(), ext)
	meta := map[string]string{
		storage.MetaOriginalName: header.Filename,
		storage.MetaDocumentID:   documentID,
	}
	if err := h.blob.PutDocument(ctx, objectKey, body, contentType, meta); err != nil {
		h.logger.Error("upload object", zap.String("object_key", objectKey), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to upload file"})
		return
	}

	rec, err := h.store.InsertDocument(ctx, domain.DocumentRecord{
		DocumentID:   documentID,
		FileName:     header.Filename,
		FileSize:     int64(len(body)),
		MimeType:     contentType,
		StorageType:  domain.StorageObject,
		StorageKey:   objectKey,
		DocumentType: docType,
	})
	if err != nil {
		// catalog sync may have recorded the object already
		if existing, getErr := h.store.GetDocumentByDocumentID(ctx, documentID); getErr == nil && existing.StorageKey == objectKey {
			writeJSON(w, http.StatusCreated, existing)
			return
		}
		h.logger.Error("catalog upload", zap.String("document_id", documentID), zap.Error(err))
		if delErr := h.blob.DeleteDocument(ctx, objectKey); delErr != nil {
			h.logger.Warn("remove orphaned object", zap.String("object_key", objectKey), zap.Error(delErr))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to record upload"})
		return
	}

	h.logger.Info("document uploaded",
		zap.String("document_id", rec.DocumentID),
		zap.String("document_type", string(rec.DocumentType)),
		zap.Int64("size", rec.FileSize),
	)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request, ref string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.DocumentFetchTimeout)
	defer cancel()

	rec, ok := h.lookup(ctx, w, ref)
	if !ok {
		return
	}
	h.serveDocument(ctx, w, r, rec)
}

func (h *Handler) GetDocumentMetadata(w http.ResponseWriter, r *http.Request, ref string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, ok := h.lookup(ctx, w, ref)
	if !ok {
		return
	}
	invoices, err := h.store.InvoicesReferencing(ctx, rec.DocumentID)
	if err != nil {
		h.logger.Error("list referencing invoices", zap.String("document_id", rec.DocumentID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch metadata"})
		return
	}

	writeJSON(w, http.StatusOK, documentMetadataResponse{
		DocumentRecord: rec,
		SizeFormatted:  humanize.Bytes(uint64(max(rec.FileSize, 0))),
		Invoices:       invoices,
		CanView:        viewable(rec),
		CanDelete:      len(invoices) == 0,
	})
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request, ref string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	rec, ok := h.lookup(ctx, w, ref)
	if !ok {
		return
	}
	invoices, err := h.store.InvoicesReferencing(ctx, rec.DocumentID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to check references"})
		return
	}
	if len(invoices) > 0 {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "document is referenced by invoices",
			"invoices": invoices,
		})
		return
	}

	h.removeDocument(ctx, rec)
	if err := h.store.DeleteDocument(ctx, rec.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("delete catalog row", zap.String("document_id", rec.DocumentID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to delete document"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": rec.DocumentID, "deleted": true})
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request, invoiceID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inv, ok := h.invoice(ctx, w, invoiceID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// GenerateConsolidatedReport collapses concurrent requests for the same
// invoice into a single workflow run.
func (h *Handler) GenerateConsolidatedReport(w http.ResponseWriter, r *http.Request, invoiceID string) {
	ctx := context.WithoutCancel(r.Context())

	v, err, shared := h.inflight.Do(invoiceID, func() (any, error) {
		return h.reports.Generate(ctx, invoiceID)
	})
	if err != nil {
		status, msg := generateErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("consolidated report failed", zap.String("invoice_id", invoiceID), zap.Error(err))
		}
		writeJSON(w, status, map[string]any{"error": msg})
		return
	}

	result := v.(appTemporal.ReportWorkflowResult)
	h.logger.Info("consolidated report generated",
		zap.String("invoice_id", invoiceID),
		zap.String("document_id", result.DocumentID),
		zap.Int("pages", result.PageCount),
		zap.Bool("shared", shared),
	)
	writeJSON(w, http.StatusCreated, generateResponse{
		Success:            true,
		WorkflowID:         result.WorkflowID,
		InvoiceID:          result.InvoiceID,
		DocumentID:         result.DocumentID,
		FileName:           result.FileName,
		FileSize:           result.FileSize,
		PageCount:          result.PageCount,
		DocumentsProcessed: result.DocumentsProcessed,
		Linked:             result.Linked,
		GeneratedAt:        result.GeneratedAt,
	})
}

func (h *Handler) GetConsolidatedReport(w http.ResponseWriter, r *http.Request, invoiceID string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.DocumentFetchTimeout)
	defer cancel()

	rec, ok := h.consolidatedReport(ctx, w, invoiceID)
	if !ok {
		return
	}
	h.serveDocument(ctx, w, r, rec)
}

func (h *Handler) DeleteConsolidatedReport(w http.ResponseWriter, r *http.Request, invoiceID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	rec, ok := h.consolidatedReport(ctx, w, invoiceID)
	if !ok {
		return
	}
	if err := h.store.ClearConsolidatedReport(ctx, invoiceID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("clear consolidated link", zap.String("invoice_id", invoiceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to unlink report"})
		return
	}
	h.removeDocument(ctx, rec)
	if err := h.store.DeleteDocument(ctx, rec.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Error("delete consolidated row", zap.String("document_id", rec.DocumentID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to delete report"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice_id": invoiceID, "document_id": rec.DocumentID, "deleted": true})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) lookup(ctx context.Context, w http.ResponseWriter, ref string) (domain.DocumentRecord, bool) {
	found, err := h.store.LookupDocument(ctx, ref)
	if err != nil {
		h.logger.Error("document lookup", zap.String("ref", ref), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch document"})
		return domain.DocumentRecord{}, false
	}
	if !found.Found() {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "document not found"})
		return domain.DocumentRecord{}, false
	}
	return found.Record, true
}

func (h *Handler) invoice(ctx context.Context, w http.ResponseWriter, invoiceID string) (domain.Invoice, bool) {
	inv, err := h.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "invoice not found"})
			return domain.Invoice{}, false
		}
		h.logger.Error("get invoice", zap.String("invoice_id", invoiceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch invoice"})
		return domain.Invoice{}, false
	}
	return inv, true
}

func (h *Handler) consolidatedReport(ctx context.Context, w http.ResponseWriter, invoiceID string) (domain.DocumentRecord, bool) {
	inv, ok := h.invoice(ctx, w, invoiceID)
	if !ok {
		return domain.DocumentRecord{}, false
	}
	ref := inv.SlotRef(domain.SlotConsolidated)
	if ref == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no consolidated report for invoice"})
		return domain.DocumentRecord{}, false
	}
	rec, err := h.store.GetDocumentByDocumentID(ctx, *ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "consolidated report not found"})
			return domain.DocumentRecord{}, false
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch report"})
		return domain.DocumentRecord{}, false
	}
	return rec, true
}

// removeDocument deletes the stored object. Failures are logged only; the
// catalog row is authoritative.
func (h *Handler) removeDocument(ctx context.Context, rec domain.DocumentRecord) {
	if rec.StorageType != domain.StorageObject || rec.StorageKey == "" {
		return
	}
	if err := h.blob.DeleteDocument(ctx, rec.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.Warn("delete object", zap.String("object_key", rec.StorageKey), zap.Error(err))
	}
}

func (h *Handler) serveDocument(ctx context.Context, w http.ResponseWriter, r *http.Request, rec domain.DocumentRecord) {
	action := r.URL.Query().Get("action")
	switch action {
	case "", "download", "view":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "action must be download or view"})
		return
	}
	if rec.StorageType != domain.StorageObject {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "document is not held in object storage"})
		return
	}

	body, err := h.blob.GetDocument(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrEmptyObject) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "document content not found"})
			return
		}
		h.logger.Error("fetch object", zap.String("object_key", rec.StorageKey), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch document"})
		return
	}

	contentType := rec.MimeType
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}
	disposition := "attachment"
	if action == "view" {
		disposition = "inline"
		if viewable(rec) {
			w.Header().Set("Cache-Control", "private, max-age=3600")
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": rec.FileName}))
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// detectContentType trusts a specific declared type and otherwise sniffs the
// content. The extension falls back to the sniffed type's.
func detectContentType(declared, fileName string, body []byte) (string, string) {
	ext := strings.ToLower(filepath.Ext(path.Base(fileName)))
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		if m := mimetype.Lookup(declared); ext == "" && m != nil {
			ext = m.Extension()
		}
		return declared, ext
	}

	detected := mimetype.Detect(body)
	if ext == "" {
		ext = detected.Extension()
	}
	return detected.String(), ext
}

func viewable(rec domain.DocumentRecord) bool {
	if rec.StorageType != domain.StorageObject {
		return false
	}
	return strings.HasPrefix(rec.MimeType, "image/") || rec.MimeType == "application/pdf"
}

func generateErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, appTemporal.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice not found"
	case errors.Is(err, appTemporal.ErrInvalidInvoice):
		return http.StatusBadRequest, "invoice cannot be reported"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "report generation timed out"
	case errors.Is(err, appTemporal.ErrRenderFailed):
		return http.StatusInternalServerError, "report rendering failed"
	default:
		return http.StatusInternalServerError, "failed to generate consolidated report"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
