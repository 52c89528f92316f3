package pagination

import (
	"math"

	"github.com/pg-sharding/shroute/pkg/models/sherror"
	"github.com/pg-sharding/shroute/router/algorithm"
	"github.com/pg-sharding/shroute/router/statement"
)

// Segment is one LIMIT operand: a literal or a parameter marker.
type Segment struct {
	Value      int64
	ParamIndex int
	IsParam    bool
	// BoundOpened marks an exclusive bound, as in "ROW_NUMBER() > n" style paging.
	BoundOpened bool
}

func segmentOf(v *statement.LimitValue) *Segment {
	if v == nil {
		return nil
	}
	return &Segment{Value: v.Value, ParamIndex: v.ParamIndex, IsParam: v.IsParam}
}

// PaginationContext holds the resolved LIMIT of a statement.
type PaginationContext struct {
	Offset   *Segment
	RowCount *Segment

	actualOffset   int64
	actualRowCount int64
}

// New resolves the limit of stmt against params. A statement without LIMIT yields a context
// without pagination.
func New(stmt *statement.Statement, params []any) (*PaginationContext, error) {
	p := &PaginationContext{}
	if stmt.Limit == nil {
		return p, nil
	}
	p.Offset = segmentOf(stmt.Limit.Offset)
	p.RowCount = segmentOf(stmt.Limit.RowCount)

	var err error
	if p.actualOffset, err = value(p.Offset, params); err != nil {
		return nil, err
	}
	if p.actualRowCount, err = value(p.RowCount, params); err != nil {
		return nil, err
	}
	return p, nil
}

func value(s *Segment, params []any) (int64, error) {
	if s == nil {
		return 0, nil
	}
	if !s.IsParam {
		return s.Value, nil
	}
	if s.ParamIndex < 0 || s.ParamIndex >= len(params) {
		return 0, sherror.Newf(sherror.SHR_ROUTING_ERROR, "limit parameter %d is not bound", s.ParamIndex)
	}
	v, err := algorithm.ToInt64(params[s.ParamIndex])
	if err != nil {
		return 0, sherror.Newf(sherror.SHR_ROUTING_ERROR, "limit parameter %d: %s", s.ParamIndex, err)
	}
	return v, nil
}

func (p *PaginationContext) HasPagination() bool {
	return p.Offset != nil || p.RowCount != nil
}

// ActualOffset is the offset the client asked for.
func (p *PaginationContext) ActualOffset() int64 {
	if p.Offset == nil {
		return 0
	}
	if p.Offset.BoundOpened {
		return p.actualOffset - 1
	}
	return p.actualOffset
}

// ActualRowCount is the row count the client asked for; ok is false without one.
func (p *PaginationContext) ActualRowCount() (int64, bool) {
	if p.RowCount == nil {
		return 0, false
	}
	if p.RowCount.BoundOpened {
		return p.actualRowCount + 1, true
	}
	return p.actualRowCount, true
}

// RevisedOffset is the offset sent to every target. When results are re-aggregated
// after merging, each target has to return rows from the start.
func (p *PaginationContext) RevisedOffset(aggregation bool) int64 {
	if aggregation && p.Offset != nil {
		return 0
	}
	return p.ActualOffset()
}

// RevisedRowCount is the row count sent to every target. With re-aggregation each target
// returns offset + row count rows, capped at math.MaxInt32. unbounded is set when the merge
// needs every row, as for GROUP BY differing from ORDER BY.
func (p *PaginationContext) RevisedRowCount(aggregation, unbounded bool) (int64, bool) {
	rc, ok := p.ActualRowCount()
	if !ok {
		return 0, false
	}
	if !aggregation {
		return rc, true
	}
	if unbounded {
		return math.MaxInt32, true
	}
	off := p.ActualOffset()
	if off > math.MaxInt32-rc || off+rc < 0 {
		return math.MaxInt32, true
	}
	return off + rc, true
}

// Revision is the limit rewrite of a statement routed to several targets.
type Revision struct {
	Offset      int64 `json:"offset"`
	RowCount    int64 `json:"row_count"`
	HasRowCount bool  `json:"has_row_count"`
}

// Revise computes the per-target limit of stmt. maxRowCount, when positive, caps the row count.
func Revise(stmt *statement.Statement, params []any, maxRowCount int64) (*Revision, error) {
	p, err := New(stmt, params)
	if err != nil {
		return nil, err
	}
	if !p.HasPagination() {
		return nil, nil
	}

	agg := stmt.NeedsAggregation()
	rev := &Revision{Offset: p.RevisedOffset(agg)}
	rev.RowCount, rev.HasRowCount = p.RevisedRowCount(agg, stmt.GroupByDiffersFromOrderBy())
	if rev.HasRowCount && maxRowCount > 0 && rev.RowCount > maxRowCount {
		rev.RowCount = maxRowCount
	}
	return rev, nil
}
