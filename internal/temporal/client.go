package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvalidInvoice  = errors.New("invoice cannot be reported")
	ErrRenderFailed    = errors.New("report rendering failed")
)

// ReportClient starts report workflows and waits for their outcome.
type ReportClient struct {
	client    client.Client
	taskQueue string
	idPrefix  string
	timeout   time.Duration
	now       func() time.Time
}

func NewReportClient(c client.Client, taskQueue, idPrefix string, timeout time.Duration) *ReportClient {
	return &ReportClient{
		client:    c,
		taskQueue: taskQueue,
		idPrefix:  idPrefix,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (r *ReportClient) WorkflowID(invoiceID string) string {
	return fmt.Sprintf("%s-%s-%d", r.idPrefix, invoiceID, r.now().UnixMilli())
}

func (r *ReportClient) Generate(ctx context.Context, invoiceID string) (ReportWorkflowResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	run, err := r.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        r.WorkflowID(invoiceID),
		TaskQueue: r.taskQueue,
	}, ConsolidatedReportWorkflowName, ReportWorkflowInput{InvoiceID: invoiceID})
	if err != nil {
		return ReportWorkflowResult{}, fmt.Errorf("start report workflow: %w", err)
	}

	var result ReportWorkflowResult
	if err := run.Get(ctx, &result); err != nil {
		return ReportWorkflowResult{}, classifyWorkflowError(err)
	}
	return result, nil
}

// classifyWorkflowError maps application error types raised by activities to
// package sentinels callers can test with errors.Is.
func classifyWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case ErrTypeInvoiceNotFound:
			return fmt.Errorf("%w: %w", ErrInvoiceNotFound, err)
		case ErrTypeInvalidInvoice:
			return fmt.Errorf("%w: %w", ErrInvalidInvoice, err)
		case ErrTypeRender:
			return fmt.Errorf("%w: %w", ErrRenderFailed, err)
		}
	}
	return fmt.Errorf("report workflow: %w", err)
}
