package board

import (
	"sort"

	"go-pipeline/internal/common/models"

	"github.com/shopspring/decimal"
)

// StageColumn is one stage with the deals currently assigned to it.
// TotalValue and DealCount are derived from Deals and never read from storage.
type StageColumn struct {
	models.Stage
	Deals      []models.Deal   `json:"deals"`
	TotalValue decimal.Decimal `json:"total_value"`
	DealCount  int             `json:"deal_count"`
}

func (c StageColumn) clone() StageColumn {
	out := c
	out.Deals = make([]models.Deal, len(c.Deals))
	for i, d := range c.Deals {
		out.Deals[i] = d.Clone()
	}
	return out
}

func (c StageColumn) indexOf(dealID string) int {
	for i, d := range c.Deals {
		if d.ID == dealID {
			return i
		}
	}
	return -1
}

// Board is an immutable snapshot of the projection.
type Board struct {
	Version       uint64          `json:"version"`
	Loaded        bool            `json:"loaded"`
	Stages        []StageColumn   `json:"stages"`
	PendingDrag   *models.Deal    `json:"pending_drag,omitempty"`
	TotalPipeline decimal.Decimal `json:"total_pipeline"`
	TotalMargin   decimal.Decimal `json:"total_margin"`
	DealCount     int             `json:"deal_count"`
}

// Column returns the column for stageID, if it is on the board.
func (b Board) Column(stageID string) (StageColumn, bool) {
	for _, c := range b.Stages {
		if c.ID == stageID {
			return c, true
		}
	}
	return StageColumn{}, false
}

// FindDeal returns the deal with id and the stage holding it.
func (b Board) FindDeal(dealID string) (models.Deal, string, bool) {
	for _, c := range b.Stages {
		if i := c.indexOf(dealID); i >= 0 {
			return c.Deals[i], c.ID, true
		}
	}
	return models.Deal{}, "", false
}

// buildColumns partitions deals across stages ordered by order_index. Deals whose
// stage_id matches no stage are returned as orphans and left off the board.
func buildColumns(stages []models.Stage, deals []models.Deal) ([]StageColumn, []string) {
	sorted := append([]models.Stage(nil), stages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	columns := make([]StageColumn, len(sorted))
	index := make(map[string]int, len(sorted))
	for i, st := range sorted {
		columns[i] = StageColumn{Stage: st, Deals: []models.Deal{}, TotalValue: decimal.Zero}
		index[st.ID] = i
	}

	var orphans []string
	for _, d := range deals {
		i, ok := index[d.StageID]
		if !ok {
			orphans = append(orphans, d.ID)
			continue
		}
		columns[i].Deals = append(columns[i].Deals, d.Clone())
		columns[i].TotalValue = columns[i].TotalValue.Add(d.EstimatedBudget)
		columns[i].DealCount++
	}
	return columns, orphans
}

func summarize(columns []StageColumn) (pipeline, margin decimal.Decimal, count int) {
	pipeline, margin = decimal.Zero, decimal.Zero
	for _, c := range columns {
		pipeline = pipeline.Add(c.TotalValue)
		count += c.DealCount
		for _, d := range c.Deals {
			margin = margin.Add(d.Margin)
		}
	}
	return pipeline, margin, count
}
