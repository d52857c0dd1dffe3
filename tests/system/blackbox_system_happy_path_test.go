//go:build system

package system_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"scraptrade-reports/internal/domain"
	"scraptrade-reports/internal/storage"
	appTemporal "scraptrade-reports/internal/temporal"
)

var pdfPage = regexp.MustCompile(`/Type\s*/Page\b`)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.MigrationPath, cfg.PostgresDSN)).To(Succeed())
	})

	It("uploads documents, generates a consolidated report through a real worker and serves it", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		By("uploading an image and a PDF exactly like a user")
		photo, err := sampleJPEG()
		Expect(err).ToNot(HaveOccurred())
		sale, err := uploadDocument(apiBaseURL, "sale-bill.jpg", photo, domain.DocumentTypeSale)
		Expect(err).ToNot(HaveOccurred())
		Expect(sale.MimeType).To(Equal("image/jpeg"))

		weight, err := uploadDocument(apiBaseURL, "weighbridge.pdf", []byte("%PDF-1.4\n%%EOF\n"), domain.DocumentTypeWeightReport)
		Expect(err).ToNot(HaveOccurred())

		By("creating an invoice referencing both uploads and a dangling toll slip")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		invoiceNumber := fmt.Sprintf("SYS-%d", time.Now().UnixMilli())
		invoiceID, err := seedInvoice(db, invoiceNumber, sale.DocumentID, weight.DocumentID, "toll_0_missing")
		Expect(err).ToNot(HaveOccurred())

		store, err := storage.NewPostgresStore(cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer store.Close()
		docsBefore, err := store.CountDocuments(context.Background())
		Expect(err).ToNot(HaveOccurred())

		By("generating the consolidated report over HTTP")
		generated, err := generateReport(apiBaseURL, invoiceID, cfg.GenerateTimeout)
		Expect(err).ToNot(HaveOccurred())
		Expect(generated.Success).To(BeTrue())
		Expect(generated.Linked).To(BeTrue())
		Expect(generated.DocumentsProcessed).To(Equal(3))
		Expect(generated.PageCount).To(Equal(5))
		Expect(generated.FileName).To(Equal(domain.ConsolidatedFileName(invoiceNumber)))

		By("downloading the linked report")
		pdf, header, err := downloadBytes(apiBaseURL + "/v1/invoices/" + invoiceID + "/consolidated-report?action=download")
		Expect(err).ToNot(HaveOccurred())
		Expect(header.Get("Content-Type")).To(Equal("application/pdf"))
		Expect(string(pdf[:5])).To(Equal("%PDF-"))
		Expect(pdfPage.FindAll(pdf, -1)).To(HaveLen(5))
		Expect(int64(len(pdf))).To(Equal(generated.FileSize))

		By("validating activity inputs and outputs from Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		trace, err := collectActivityTrace(context.Background(), temporalClient, generated.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(trace.ScheduledOrder).To(Equal(cfg.ExpectedActivityOrder))
		Expect(trace.CompletedOrder).To(Equal(cfg.ExpectedActivityOrder))

		generateIn := trace.Inputs["GenerateReportActivity"].(appTemporal.GenerateReportInput)
		Expect(generateIn.InvoiceID).To(Equal(invoiceID))

		generateOut := trace.Outputs["GenerateReportActivity"].(appTemporal.GenerateReportOutput)
		Expect(generateOut.DocumentID).To(Equal(generated.DocumentID))
		Expect(generateOut.ObjectKey).To(Equal(domain.ConsolidatedStorageKey(generated.DocumentID)))

		linkIn := trace.Inputs["LinkInvoiceReportActivity"].(appTemporal.LinkInvoiceReportInput)
		Expect(linkIn.DocumentID).To(Equal(generated.DocumentID))

		By("verifying catalog and invoice rows in Postgres")
		var linked sql.NullString
		Expect(db.QueryRow(`SELECT consolidated_report_id FROM invoices WHERE id = $1`, invoiceID).Scan(&linked)).To(Succeed())
		Expect(linked.String).To(Equal(generated.DocumentID))

		var docType string
		Expect(db.QueryRow(`SELECT document_type FROM documents WHERE document_id = $1`, generated.DocumentID).Scan(&docType)).To(Succeed())
		Expect(docType).To(Equal(string(domain.DocumentTypeConsolidated)))

		docsAfter, err := store.CountDocuments(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(docsAfter - docsBefore).To(Equal(int64(1)))
	})
})
