// Package storetest builds throwaway SQLite collision databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/collision-data-api/internal/store"
)

// PartiesColumns is the parties column list in declaration order.
var PartiesColumns = []string{
	"id", "case_id", "party_number", "party_type", "at_fault", "party_sex",
	"party_age", "party_sobriety", "party_drug_physical", "direction_of_travel",
	"vehicle_year", "party_race", "cellphone_in_use", "party_number_killed",
	"party_number_injured",
}

// Party is a parties row used in fixtures.
type Party struct {
	CaseID      string
	AtFault     int
	Sex         string
	Age         int
	Race        string
	VehicleYear int
	Cellphone   int
	Killed      int
	Injured     int
}

// NewDatabase creates an empty collision database in a temp dir and returns its path.
func NewDatabase(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "switrs.sqlite")
	Exec(t, path, store.MockSchema)
	return path
}

// Exec runs statements against the database at path with a writable connection.
func Exec(t testing.TB, path, query string, args ...any) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(query, args...)
	require.NoError(t, err)
}

// InsertParties appends parties rows in the given order.
func InsertParties(t testing.TB, path string, parties ...Party) {
	t.Helper()
	for i, p := range parties {
		Exec(t, path, `INSERT INTO parties (
			case_id, party_number, party_type, at_fault, party_sex, party_age,
			party_sobriety, party_drug_physical, direction_of_travel,
			vehicle_year, party_race, cellphone_in_use,
			party_number_killed, party_number_injured
		) VALUES (?, ?, 'driver', ?, ?, ?, 'had not been drinking', NULL, 'north', ?, ?, ?, ?, ?)`,
			p.CaseID, i+1, p.AtFault, p.Sex, p.Age, p.VehicleYear, p.Race, p.Cellphone, p.Killed, p.Injured)
	}
}

// InsertCases adds n case_ids rows with ids case-0001.. and year 2020.
func InsertCases(t testing.TB, path string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		Exec(t, path, "INSERT INTO case_ids (case_id, db_year) VALUES (?, 2020)", fmt.Sprintf("case-%04d", i))
	}
}

// Open opens the database through the store package and closes it on cleanup.
func Open(t testing.TB, path string) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
