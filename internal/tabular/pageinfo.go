package tabular

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/store"
)

// PageInfo describes how a table splits into pages of a given size.
type PageInfo struct {
	Table      domain.Table `json:"table_name"`
	TotalRows  int64        `json:"total_rows"`
	TotalPages int64        `json:"total_pages"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	HasMore    bool         `json:"has_more"`
}

// PageInfo reports the row and page totals of table and whether pages follow
// page. Row counts are memoized per table until ResetCounts.
func (s *Service) PageInfo(ctx context.Context, table domain.Table, page, pageSize int) (PageInfo, error) {
	if !table.Valid() {
		return PageInfo{}, fmt.Errorf("page info: %w: %q", domain.ErrUnknownTable, table)
	}
	if err := s.checkPage(page, pageSize); err != nil {
		return PageInfo{}, err
	}

	total, err := s.rowCount(ctx, table)
	if err != nil {
		return PageInfo{}, err
	}

	pages := (total + int64(pageSize) - 1) / int64(pageSize)
	return PageInfo{
		Table:      table,
		TotalRows:  total,
		TotalPages: pages,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page)+1 < pages,
	}, nil
}

// ResetCounts forgets memoized row counts.
func (s *Service) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.counts)
}

func (s *Service) rowCount(ctx context.Context, table domain.Table) (int64, error) {
	s.mu.Lock()
	n, ok := s.counts[table]
	s.mu.Unlock()
	if ok {
		return n, nil
	}

	start := time.Now()
	err := s.sessions.Session(ctx, func(ctx context.Context, sess *store.Session) error {
		return sess.QueryRow(ctx, "SELECT COUNT(*) FROM "+store.QuoteIdent(table.String())).Scan(&n)
	})
	s.observe(kindCount, start, err)
	if err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}

	s.mu.Lock()
	s.counts[table] = n
	s.mu.Unlock()
	return n, nil
}
