package temporal

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const ConsolidatedReportWorkflowName = "ConsolidatedReportWorkflow"

type ReportWorkflowInput struct {
	InvoiceID string
}

type ReportWorkflowResult struct {
	WorkflowID         string
	InvoiceID          string
	InvoiceNumber      string
	DocumentID         string
	FileName           string
	ObjectKey          string
	FileSize           int64
	PageCount          int
	DocumentsProcessed int
	Linked             bool
	GeneratedAt        time.Time
}

// ConsolidatedReportWorkflow renders, stores and catalogs an invoice's
// consolidated report, then links it back onto the invoice.
func ConsolidatedReportWorkflow(ctx workflow.Context, input ReportWorkflowInput) (ReportWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	if input.InvoiceID == "" {
		return ReportWorkflowResult{}, temporal.NewNonRetryableApplicationError("invoice id is required", ErrTypeInvalidInvoice, nil)
	}

	var generated GenerateReportOutput
	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyGenerateReport), (*Activities).GenerateReportActivity, GenerateReportInput{
		InvoiceID:   input.InvoiceID,
		RequestedAt: workflow.Now(ctx),
	}).Get(ctx, &generated); err != nil {
		return ReportWorkflowResult{}, err
	}

	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyRecordReport), (*Activities).RecordReportActivity, RecordReportInput{
		DocumentID: generated.DocumentID,
		FileName:   generated.FileName,
		ObjectKey:  generated.ObjectKey,
		FileSize:   generated.FileSize,
	}).Get(ctx, nil); err != nil {
		// an uncatalogued object is unreachable, remove it
		if cleanupErr := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyDeleteReportObject), (*Activities).DeleteReportObjectActivity, DeleteReportObjectInput{
			ObjectKey: generated.ObjectKey,
		}).Get(ctx, nil); cleanupErr != nil {
			logger.Error("failed to remove uncatalogued report object", "ObjectKey", generated.ObjectKey, "Error", cleanupErr)
			return ReportWorkflowResult{}, errors.Join(err, cleanupErr)
		}
		return ReportWorkflowResult{}, err
	}

	result := ReportWorkflowResult{
		WorkflowID:         workflow.GetInfo(ctx).WorkflowExecution.ID,
		InvoiceID:          input.InvoiceID,
		InvoiceNumber:      generated.InvoiceNumber,
		DocumentID:         generated.DocumentID,
		FileName:           generated.FileName,
		ObjectKey:          generated.ObjectKey,
		FileSize:           generated.FileSize,
		PageCount:          generated.PageCount,
		DocumentsProcessed: generated.DocumentsProcessed,
		GeneratedAt:        generated.GeneratedAt,
	}

	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyLinkInvoiceReport), (*Activities).LinkInvoiceReportActivity, LinkInvoiceReportInput{
		InvoiceID:  input.InvoiceID,
		DocumentID: generated.DocumentID,
	}).Get(ctx, nil); err != nil {
		logger.Warn("report stored but not linked to invoice", "InvoiceID", input.InvoiceID, "DocumentID", generated.DocumentID, "Error", err)
		return result, nil
	}
	result.Linked = true
	return result, nil
}
