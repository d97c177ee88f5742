package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-pipeline/internal/board"
	"go-pipeline/pkg/utils"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{"Stage", "Deal ID", "Client", "Status", "Estimated Budget", "Margin", "Shipping Date", "Products", "Tags"}

type PipelineService interface {
	Board() board.Board
	BeginDrag(dealID string) bool
	CancelDrag()
	Move(ctx context.Context, dealID, stageID string) (bool, error)
	Reload(ctx context.Context) error
	ExportToExcel(ctx context.Context) ([]byte, string, error)
}

type PipelineServiceImpl struct {
	Sync *board.Synchronizer
	now  func() time.Time
}

func NewPipelineService(sync *board.Synchronizer) PipelineService {
	return &PipelineServiceImpl{Sync: sync, now: time.Now}
}

func (s *PipelineServiceImpl) Board() board.Board {
	return s.Sync.Snapshot()
}

func (s *PipelineServiceImpl) BeginDrag(dealID string) bool {
	return s.Sync.BeginDrag(dealID)
}

func (s *PipelineServiceImpl) CancelDrag() {
	s.Sync.CancelDrag()
}

func (s *PipelineServiceImpl) Move(ctx context.Context, dealID, stageID string) (bool, error) {
	return s.Sync.CompleteDrag(ctx, dealID, stageID)
}

func (s *PipelineServiceImpl) Reload(ctx context.Context) error {
	return s.Sync.Load(ctx)
}

// ExportToExcel writes the current projection as a workbook with one row per deal
// and a per-stage summary sheet.
func (s *PipelineServiceImpl) ExportToExcel(ctx context.Context) ([]byte, string, error) {
	b := s.Sync.Snapshot()

	f := excelize.NewFile()
	defer f.Close()

	const dealsSheet, summarySheet = "Pipeline", "Summary"
	if err := f.SetSheetName("Sheet1", dealsSheet); err != nil {
		return nil, "", err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, "", err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", err
	}
	writeRow := func(sheet string, row int, values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}
	header := func(sheet string, columns []string) error {
		values := make([]any, len(columns))
		for i, c := range columns {
			values[i] = c
		}
		if err := writeRow(sheet, 1, values...); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(columns), 1)
		if err != nil {
			return err
		}
		return f.SetCellStyle(sheet, "A1", last, headerStyle)
	}

	if err := header(dealsSheet, exportColumns); err != nil {
		return nil, "", err
	}
	row := 2
	for _, col := range b.Stages {
		for _, d := range col.Deals {
			shipping := ""
			if d.ShippingDate != nil {
				shipping = *d.ShippingDate
			}
			products := make([]string, len(d.Products))
			for i, p := range d.Products {
				products[i] = fmt.Sprintf("%s x%d", p.ProductName, p.Quantity)
			}
			tags := make([]string, len(d.Tags))
			for i, t := range d.Tags {
				tags[i] = t.Tag
			}
			if err := writeRow(dealsSheet, row,
				col.Name,
				d.DealCode,
				d.ClientName,
				string(d.Status),
				d.EstimatedBudget.InexactFloat64(),
				d.Margin.InexactFloat64(),
				shipping,
				strings.Join(products, ", "),
				strings.Join(tags, ", "),
			); err != nil {
				return nil, "", err
			}
			row++
		}
	}

	if err := header(summarySheet, []string{"Stage", "Deals", "Total Value"}); err != nil {
		return nil, "", err
	}
	row = 2
	for _, col := range b.Stages {
		if err := writeRow(summarySheet, row, col.Name, col.DealCount, col.TotalValue.InexactFloat64()); err != nil {
			return nil, "", err
		}
		row++
	}
	if err := writeRow(summarySheet, row, "Total", b.DealCount, b.TotalPipeline.InexactFloat64()); err != nil {
		return nil, "", err
	}
	if err := writeRow(summarySheet, row+1, "Margin", nil, b.TotalMargin.InexactFloat64()); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := utils.Slugify("pipeline "+s.now().Format("2006-01-02")) + ".xlsx"
	return buf.Bytes(), filename, nil
}
