package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"scraptrade-reports/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const invoiceColumns = `
	i.id, i.invoice_number, COALESCE(i.weight, 0), i.sale_cost, i.purchase_cost, i.profit, i.tds,
	i.status, i.hsn_code, i.debit_note, i.credit_note,
	i.sale_doc, i.purchase_doc, i.toll_doc, i.weight_report, i.classification_report, i.consolidated_report_id,
	sp.name, pp.name, i.created_at, i.updated_at`

// GetInvoice loads an invoice together with its sale and purchase party names.
func (s *PostgresStore) GetInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return domain.Invoice{}, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
	}

	var inv domain.Invoice
	var hsn, debit, credit sql.NullString
	var sale, purchase, toll, weight, classification, consolidated sql.NullString
	var saleParty, purchaseParty sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		LEFT JOIN parties sp ON sp.id = i.sale_party_id
		LEFT JOIN parties pp ON pp.id = i.purchase_party_id
		WHERE i.id = $1
	`, invoiceID)
	err := row.Scan(
		&inv.ID,
		&inv.InvoiceNumber,
		&inv.Weight,
		&inv.SaleCost,
		&inv.PurchaseCost,
		&inv.Profit,
		&inv.TDS,
		&inv.Status,
		&hsn,
		&debit,
		&credit,
		&sale,
		&purchase,
		&toll,
		&weight,
		&classification,
		&consolidated,
		&saleParty,
		&purchaseParty,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
	}
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("get invoice %s: %w", invoiceID, err)
	}

	inv.HSNCode = stringPtr(hsn)
	inv.DebitNote = stringPtr(debit)
	inv.CreditNote = stringPtr(credit)
	inv.SaleDoc = stringPtr(sale)
	inv.PurchaseDoc = stringPtr(purchase)
	inv.TollDoc = stringPtr(toll)
	inv.WeightReport = stringPtr(weight)
	inv.ClassificationReport = stringPtr(classification)
	inv.ConsolidatedReportID = stringPtr(consolidated)
	inv.SalePartyName = stringPtr(saleParty)
	inv.PurchasePartyName = stringPtr(purchaseParty)
	return inv, nil
}

func (s *PostgresStore) SetConsolidatedReport(ctx context.Context, invoiceID, documentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET consolidated_report_id = $2, updated_at = NOW()
		WHERE id = $1
	`, invoiceID, documentID)
	if err != nil {
		return fmt.Errorf("link report to invoice %s: %w", invoiceID, err)
	}
	return expectOneRow(res, "invoice "+invoiceID)
}

func (s *PostgresStore) ClearConsolidatedReport(ctx context.Context, invoiceID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET consolidated_report_id = NULL, updated_at = NOW()
		WHERE id = $1
	`, invoiceID)
	return err
}

const documentColumns = `
	id, document_id, file_name, COALESCE(file_size, 0), COALESCE(file_type, ''),
	storage_type, COALESCE(storage_path, ''), document_type, created_at, updated_at`

func scanDocument(row *sql.Row) (domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	err := row.Scan(
		&rec.ID,
		&rec.DocumentID,
		&rec.FileName,
		&rec.FileSize,
		&rec.MimeType,
		&rec.StorageType,
		&rec.StorageKey,
		&rec.DocumentType,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

// GetDocumentByDocumentID resolves a document identifier as stored in
// invoice slots.
func (s *PostgresStore) GetDocumentByDocumentID(ctx context.Context, documentID string) (domain.DocumentRecord, error) {
	rec, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE document_id = $1
	`, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DocumentRecord{}, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return rec, nil
}

func (s *PostgresStore) getDocumentByRowID(ctx context.Context, id string) (domain.DocumentRecord, error) {
	rec, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DocumentRecord{}, fmt.Errorf("document row %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("get document row %s: %w", id, err)
	}
	return rec, nil
}

// LookupDocument accepts either the catalog row id or the document
// identifier. Row ids are tried first; a miss is reported through the
// outcome, not as an error.
func (s *PostgresStore) LookupDocument(ctx context.Context, ref string) (domain.DocumentLookup, error) {
	if _, err := uuid.Parse(ref); err == nil {
		rec, err := s.getDocumentByRowID(ctx, ref)
		if err == nil {
			return domain.DocumentLookup{Outcome: domain.LookupByRowID, Record: rec}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return domain.DocumentLookup{}, err
		}
	}

	rec, err := s.GetDocumentByDocumentID(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return domain.DocumentLookup{Outcome: domain.LookupMissing}, nil
	}
	if err != nil {
		return domain.DocumentLookup{}, err
	}
	return domain.DocumentLookup{Outcome: domain.LookupByDocumentID, Record: rec}, nil
}

// InsertDocument writes a catalog row and returns it with the generated row
// id and timestamps filled in.
func (s *PostgresStore) InsertDocument(ctx context.Context, rec domain.DocumentRecord) (domain.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (document_id, file_name, file_size, file_type, storage_type, storage_path, document_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, rec.DocumentID, rec.FileName, rec.FileSize, rec.MimeType, rec.StorageType, rec.StorageKey, rec.DocumentType)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("insert document %s: %w", rec.DocumentID, err)
	}
	return rec, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return expectOneRow(res, "document "+id)
}

// InvoicesReferencing lists invoices holding documentID in any slot.
func (s *PostgresStore) InvoicesReferencing(ctx context.Context, documentID string) ([]domain.InvoiceRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_number
		FROM invoices
		WHERE sale_doc = $1
		   OR purchase_doc = $1
		   OR toll_doc = $1
		   OR weight_report = $1
		   OR classification_report = $1
		   OR consolidated_report_id = $1
		ORDER BY invoice_number ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("invoices referencing %s: %w", documentID, err)
	}
	defer rows.Close()

	refs := make([]domain.InvoiceRef, 0)
	for rows.Next() {
		var ref domain.InvoiceRef
		if err := rows.Scan(&ref.ID, &ref.InvoiceNumber); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *PostgresStore) CountDocuments(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
