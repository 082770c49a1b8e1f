// Package tabular runs paged and aggregate queries over the collision tables
// and renders the results as CSV.
package tabular

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/observability"
	"github.com/couchcryptid/collision-data-api/internal/store"
)

// ErrInvalidPage is returned for a negative page or an out-of-range page size.
var ErrInvalidPage = errors.New("invalid page")

// Query kinds recorded in metrics.
const (
	kindPage      = "page"
	kindAggregate = "aggregate"
	kindCount     = "count"
)

// SessionProvider hands out request-scoped database sessions.
type SessionProvider interface {
	Session(ctx context.Context, fn func(ctx context.Context, sess *store.Session) error) error
}

// Service executes tabular queries.
type Service struct {
	sessions    SessionProvider
	maxPageSize int
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu     sync.Mutex
	counts map[domain.Table]int64
}

// New creates a Service. maxPageSize bounds FetchPage and PageInfo.
func New(sessions SessionProvider, maxPageSize int, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		sessions:    sessions,
		maxPageSize: maxPageSize,
		logger:      logger,
		metrics:     metrics,
		counts:      make(map[domain.Table]int64),
	}
}

// FetchPage returns one page of table as CSV with a header row of the
// table's column names. Rows come back in storage order, which the database
// does not promise to keep stable between calls.
func (s *Service) FetchPage(ctx context.Context, table domain.Table, page, pageSize int) ([]byte, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("fetch page: %w: %q", domain.ErrUnknownTable, table)
	}
	if err := s.checkPage(page, pageSize); err != nil {
		return nil, err
	}

	start := time.Now()
	var buf bytes.Buffer
	err := s.sessions.Session(ctx, func(ctx context.Context, sess *store.Session) error {
		columns, err := tableColumns(ctx, sess, table)
		if err != nil {
			return err
		}

		d := sess.Dialect()
		query := fmt.Sprintf("SELECT * FROM %s LIMIT %s OFFSET %s",
			store.QuoteIdent(table.String()), d.Placeholder(1), d.Placeholder(2))
		rows, err := sess.Query(ctx, query, pageSize, int64(page)*int64(pageSize))
		if err != nil {
			return fmt.Errorf("select page: %w", err)
		}
		defer rows.Close()

		return encodeCSV(&buf, columns, rows)
	})
	s.observe(kindPage, start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch page of %s: %w", table, err)
	}

	s.logger.Debug("page fetched", "table", table, "page", page, "page_size", pageSize, "bytes", buf.Len())
	return buf.Bytes(), nil
}

// FetchAggregate runs one of the fixed aggregate queries and returns CSV
// with a header row of the result column names.
func (s *Service) FetchAggregate(ctx context.Context, kind domain.AggregateKind) ([]byte, error) {
	query, err := AggregateQuery(kind)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var buf bytes.Buffer
	err = s.sessions.Session(ctx, func(ctx context.Context, sess *store.Session) error {
		rows, err := sess.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("run aggregate: %w", err)
		}
		defer rows.Close()

		return encodeCSV(&buf, nil, rows)
	})
	s.observe(kindAggregate, start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch aggregate %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// Columns returns the column names of table in declaration order.
func (s *Service) Columns(ctx context.Context, table domain.Table) ([]string, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("columns: %w: %q", domain.ErrUnknownTable, table)
	}
	var columns []string
	err := s.sessions.Session(ctx, func(ctx context.Context, sess *store.Session) error {
		var err error
		columns, err = tableColumns(ctx, sess, table)
		return err
	})
	return columns, err
}

func (s *Service) checkPage(page, pageSize int) error {
	if page < 0 {
		return fmt.Errorf("%w: page must be >= 0, got %d", ErrInvalidPage, page)
	}
	if pageSize < 1 || pageSize > s.maxPageSize {
		return fmt.Errorf("%w: page_size must be between 1 and %d, got %d", ErrInvalidPage, s.maxPageSize, pageSize)
	}
	// OFFSET is page*pageSize and must not wrap.
	if int64(page) > math.MaxInt64/int64(pageSize)-1 {
		return fmt.Errorf("%w: page %d is out of range", ErrInvalidPage, page)
	}
	return nil
}

func (s *Service) observe(kind string, start time.Time, err error) {
	s.metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.QueryErrors.WithLabelValues(kind).Inc()
	}
}

// tableColumns introspects the column names of table in declaration order.
func tableColumns(ctx context.Context, sess *store.Session, table domain.Table) ([]string, error) {
	query, args := sess.Dialect().ColumnsQuery(table.String())
	rows, err := sess.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns or does not exist", table)
	}
	return columns, nil
}
