// internal/services/report_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/javajoker/earnings-ledger/internal/models"
)

type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

const (
	exportPageSize  = 500
	exportSheetName = "Commissions"
)

var exportHeader = []string{
	"commission_id", "payment_id", "processed_at", "item_type", "item_id",
	"buyer_id", "seller_id", "seller_type", "total_amount", "seller_amount",
	"platform_amount", "commission_percentage", "currency", "status", "paid_at",
}

// ExportResult carries the rendered report. Archive is set when the report was
// also stored in S3.
type ExportResult struct {
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Rows        int            `json:"rows"`
	Data        []byte         `json:"-"`
	Archive     *ArchiveResult `json:"archive,omitempty"`
}

type ReportService struct {
	commissions *CommissionService
	storage     *StorageService
	log         *logrus.Entry
	clock       func() time.Time
}

func NewReportService(commissions *CommissionService, storage *StorageService, log *logrus.Entry) *ReportService {
	return &ReportService{
		commissions: commissions,
		storage:     storage,
		log:         log.WithField("component", "reports"),
		clock:       time.Now,
	}
}

// Export renders every commission matching filter, ignoring its pagination.
// When archive is true and S3 is configured the file is uploaded too.
func (s *ReportService) Export(ctx context.Context, filter CommissionFilter, format ExportFormat, archive bool) (*ExportResult, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		return nil, fmt.Errorf("%w: unsupported export format %q", ErrValidation, format)
	}

	rows, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{
		Filename: fmt.Sprintf("commissions_%s.%s", s.clock().UTC().Format("20060102_150405"), format),
		Rows:     len(rows),
	}
	switch format {
	case ExportFormatXLSX:
		result.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		result.Data, err = renderXLSX(rows)
	default:
		result.ContentType = "text/csv"
		result.Data, err = renderCSV(rows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s report: %w", format, err)
	}

	if archive && s.storage.Enabled() {
		result.Archive, err = s.storage.Archive(ctx, result.Filename, result.ContentType, result.Data)
		if err != nil {
			return nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"format":   format,
		"rows":     result.Rows,
		"archived": result.Archive != nil,
	}).Info("Commission report exported")
	return result, nil
}

func (s *ReportService) collect(ctx context.Context, filter CommissionFilter) ([]models.Commission, error) {
	filter.Sort = "processed_at"
	filter.Order = "asc"
	filter.Limit = exportPageSize

	var all []models.Commission
	for page := 1; ; page++ {
		filter.Page = page
		rows, total, err := s.commissions.ListCommissions(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < exportPageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func exportRecord(c models.Commission) []string {
	paidAt := ""
	if c.PaidAt != nil {
		paidAt = c.PaidAt.UTC().Format(time.RFC3339)
	}
	return []string{
		c.ID.String(),
		c.PaymentID.String(),
		c.ProcessedAt.UTC().Format(time.RFC3339),
		string(c.ItemType),
		c.ItemID.String(),
		c.BuyerID.String(),
		c.SellerID.String(),
		string(c.SellerType),
		c.TotalAmount.StringFixed(2),
		c.SellerAmount.StringFixed(2),
		c.SuperadminAmount.StringFixed(2),
		c.Percentage.StringFixed(2),
		c.Currency,
		string(c.Status),
		paidAt,
	}
}

func renderCSV(rows []models.Commission) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, c := range rows {
		if err := w.Write(exportRecord(c)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// renderXLSX writes amounts as numbers so the sheet can be summed directly.
func renderXLSX(rows []models.Commission) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(exportSheetName)
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	for i, c := range rows {
		record := exportRecord(c)
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		row[8] = c.TotalAmount.InexactFloat64()
		row[9] = c.SellerAmount.InexactFloat64()
		row[10] = c.SuperadminAmount.InexactFloat64()
		row[11] = c.Percentage.InexactFloat64()

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
