package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/collision-data-api/internal/observability"
	"github.com/couchcryptid/collision-data-api/internal/store/storetest"
	"github.com/couchcryptid/collision-data-api/internal/tabular"
)

func newService(t *testing.T, path string) *tabular.Service {
	t.Helper()
	return tabular.New(storetest.Open(t, path), 1, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
}

func TestRun_ValidDatabase(t *testing.T) {
	path := storetest.NewDatabase(t)
	storetest.InsertParties(t, path, storetest.Party{CaseID: "a", AtFault: 1, Age: 30, Sex: "male", Race: "white"})

	assert.Equal(t, 0, run(context.Background(), path))
}

func TestRun_MissingTable(t *testing.T) {
	path := storetest.NewDatabase(t)
	storetest.Exec(t, path, "DROP TABLE victims")

	assert.Equal(t, 1, run(context.Background(), path))
}

func TestAtFaultEncodingWarns(t *testing.T) {
	path := storetest.NewDatabase(t)
	storetest.InsertParties(t, path,
		storetest.Party{CaseID: "a", AtFault: 1, Age: 30},
		storetest.Party{CaseID: "b", AtFault: 2, Age: 30},
	)
	storetest.Exec(t, path, "UPDATE parties SET at_fault = 'Y' WHERE case_id = 'a'")
	st := storetest.Open(t, path)

	p := validateAtFaultEncoding(context.Background(), st)

	assert.True(t, p.passed())
	assert.Len(t, p.warnings, 2)
}

func TestPartyColumnsMissing(t *testing.T) {
	path := storetest.NewDatabase(t)
	storetest.Exec(t, path, "ALTER TABLE parties DROP COLUMN party_race")
	svc := newService(t, path)

	p := validatePartyColumns(context.Background(), svc)

	assert.False(t, p.passed())
	assert.Contains(t, p.errors[0], "party_race")
}
