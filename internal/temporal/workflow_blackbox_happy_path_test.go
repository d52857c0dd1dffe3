package temporal

import (
	"bytes"
	"context"
	"regexp"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"scraptrade-reports/internal/domain"
	"scraptrade-reports/internal/storage"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	generateIn  *GenerateReportInput
	generateOut *GenerateReportOutput
	recordIn    *RecordReportInput
	linkIn      *LinkInvoiceReportInput

	deleteCalls int
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var pdfPage = regexp.MustCompile(`/Type\s*/Page\b`)

var _ = Describe("ConsolidatedReportWorkflow blackbox happy path", func() {
	It("renders an invoice with mixed documents, stores the PDF, catalogs it and links it", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()

		store := newFakeStore()
		blob := newFakeBlob()
		inv := seed(GinkgoT(), store, blob)
		acts := newActivities(store, blob)

		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "GenerateReportActivity":
				var in GenerateReportInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.generateIn = &in
				trace.mu.Unlock()
			case "RecordReportActivity":
				var in RecordReportInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.recordIn = &in
				trace.mu.Unlock()
			case "LinkInvoiceReportActivity":
				var in LinkInvoiceReportInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.linkIn = &in
				trace.mu.Unlock()
			case "DeleteReportObjectActivity":
				trace.mu.Lock()
				trace.deleteCalls++
				trace.mu.Unlock()
			}
		})

		env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)

			if info.ActivityType.Name == "GenerateReportActivity" {
				var out GenerateReportOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.generateOut = &out
				trace.mu.Unlock()
			}
		})

		env.RegisterWorkflow(ConsolidatedReportWorkflow)
		env.RegisterActivity(acts.GenerateReportActivity)
		env.RegisterActivity(acts.RecordReportActivity)
		env.RegisterActivity(acts.DeleteReportObjectActivity)
		env.RegisterActivity(acts.LinkInvoiceReportActivity)

		By("triggering the workflow for an invoice with an image, a PDF and a dangling reference")
		env.ExecuteWorkflow(ConsolidatedReportWorkflow, ReportWorkflowInput{InvoiceID: inv.ID})

		By("validating workflow completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var wfResult ReportWorkflowResult
		Expect(env.GetWorkflowResult(&wfResult)).To(Succeed())
		Expect(wfResult.InvoiceID).To(Equal(inv.ID))
		Expect(wfResult.InvoiceNumber).To(Equal("INV-2024-007"))
		Expect(wfResult.Linked).To(BeTrue())

		By("validating each activity input and output")
		Expect(trace.startedOrder).To(Equal([]string{
			"GenerateReportActivity",
			"RecordReportActivity",
			"LinkInvoiceReportActivity",
		}))
		Expect(trace.completedOrder).To(Equal(trace.startedOrder))
		Expect(trace.deleteCalls).To(Equal(0))

		Expect(trace.generateIn).ToNot(BeNil())
		Expect(trace.generateIn.InvoiceID).To(Equal(inv.ID))
		Expect(trace.generateIn.RequestedAt.IsZero()).To(BeFalse())

		Expect(trace.generateOut).ToNot(BeNil())
		Expect(trace.generateOut.DocumentID).To(Equal(domain.ConsolidatedDocumentID(inv.InvoiceNumber, trace.generateIn.RequestedAt)))
		Expect(trace.generateOut.ObjectKey).To(Equal(domain.ConsolidatedStorageKey(trace.generateOut.DocumentID)))
		Expect(trace.generateOut.DocumentsProcessed).To(Equal(3))
		Expect(trace.generateOut.PageCount).To(Equal(5))

		Expect(trace.recordIn).ToNot(BeNil())
		Expect(trace.recordIn.DocumentID).To(Equal(trace.generateOut.DocumentID))
		Expect(trace.recordIn.ObjectKey).To(Equal(trace.generateOut.ObjectKey))
		Expect(trace.recordIn.FileSize).To(Equal(trace.generateOut.FileSize))

		Expect(trace.linkIn).ToNot(BeNil())
		Expect(*trace.linkIn).To(Equal(LinkInvoiceReportInput{InvoiceID: inv.ID, DocumentID: trace.generateOut.DocumentID}))

		By("validating persisted side effects")
		blob.mu.Lock()
		obj, stored := blob.objects[wfResult.ObjectKey]
		blob.mu.Unlock()
		Expect(stored).To(BeTrue())
		Expect(obj.contentType).To(Equal("application/pdf"))
		Expect(obj.meta).To(HaveKeyWithValue(storage.MetaDocumentID, wfResult.DocumentID))
		Expect(bytes.HasPrefix(obj.content, []byte("%PDF-"))).To(BeTrue())
		Expect(pdfPage.FindAll(obj.content, -1)).To(HaveLen(5))

		store.mu.Lock()
		rec, catalogued := store.docs[wfResult.DocumentID]
		linked := store.invoices[inv.ID].ConsolidatedReportID
		store.mu.Unlock()

		Expect(catalogued).To(BeTrue())
		Expect(rec.DocumentType).To(Equal(domain.DocumentTypeConsolidated))
		Expect(rec.FileName).To(Equal("consolidated_report_INV-2024-007.pdf"))
		Expect(linked).ToNot(BeNil())
		Expect(*linked).To(Equal(wfResult.DocumentID))
	})
})
