// Command validate checks that a collision database can back the API: every
// exposed table is present, parties carries the columns the aggregates and
// the classifier read, at_fault uses the 0/1 encoding, and both aggregates run.
//
// Usage:
//
//	go run ./cmd/validate -database-url data/switrs.sqlite
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/observability"
	"github.com/couchcryptid/collision-data-api/internal/store"
	"github.com/couchcryptid/collision-data-api/internal/tabular"
)

// requiredPartyColumns are read by the aggregates and the feature frame.
var requiredPartyColumns = []string{
	"case_id", "at_fault", "party_sex", "party_age", "party_race",
	"vehicle_year", "cellphone_in_use", "party_number_killed", "party_number_injured",
}

// phase tracks pass/fail for a validation phase. Warnings never fail it.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	databaseURL := flag.String("database-url", sharedcfg.EnvOrDefault("DATABASE_URL", ""), "database URL or sqlite path")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	if *databaseURL == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if code := run(ctx, *databaseURL); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, databaseURL string) int {
	fmt.Println("=== Collision Database Validation ===")
	fmt.Println()

	st, err := store.Open(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer st.Close()

	// Metrics are not exported by this tool.
	svc := tabular.New(st, 1, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())

	phases := []*phase{
		validateTables(ctx, svc),
		validatePartyColumns(ctx, svc),
		validateAtFaultEncoding(ctx, st),
		validateAggregates(ctx, svc),
	}

	if !report(phases) {
		return 1
	}
	return 0
}

func report(phases []*phase) bool {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() && len(p.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  error: %s\n", e)
		}
		for _, w := range p.warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	fmt.Println()
	if allPassed {
		fmt.Println("All phases passed.")
	}
	return allPassed
}

func validateTables(ctx context.Context, svc *tabular.Service) *phase {
	p := &phase{name: "Exposed tables present"}
	for _, t := range domain.Tables() {
		if _, err := svc.Columns(ctx, t); err != nil {
			p.errorf("%s: %v", t, err)
		}
	}
	return p
}

func validatePartyColumns(ctx context.Context, svc *tabular.Service) *phase {
	p := &phase{name: "Parties columns"}
	cols, err := svc.Columns(ctx, domain.TableParties)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	var missing []string
	for _, c := range requiredPartyColumns {
		if !slices.Contains(cols, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		p.errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return p
}

// validateAtFaultEncoding warns about at_fault values other than 0 and 1;
// the aggregates silently exclude them.
func validateAtFaultEncoding(ctx context.Context, st *store.Store) *phase {
	p := &phase{name: "at_fault encoding"}
	err := st.Session(ctx, func(ctx context.Context, sess *store.Session) error {
		rows, err := sess.Query(ctx, `SELECT at_fault, COUNT(*) FROM parties
			WHERE at_fault IS NULL OR at_fault NOT IN (0, 1)
			GROUP BY at_fault`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var value any
			var n int64
			if err := rows.Scan(&value, &n); err != nil {
				return err
			}
			p.warnf("%d rows with at_fault=%v are excluded from aggregates", n, displayValue(value))
		}
		return rows.Err()
	})
	if err != nil {
		p.errorf("%v", err)
	}
	return p
}

func validateAggregates(ctx context.Context, svc *tabular.Service) *phase {
	p := &phase{name: "Aggregates run"}
	for _, k := range domain.Aggregates() {
		data, err := svc.FetchAggregate(ctx, k)
		if err != nil {
			p.errorf("%s: %v", k, err)
			continue
		}
		if lines := strings.Count(string(data), "\n"); lines <= 1 {
			p.warnf("%s: no rows", k)
		}
	}
	return p
}

func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("%q", x)
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(x)
	}
}
