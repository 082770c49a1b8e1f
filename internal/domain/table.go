package domain

import (
	"errors"
	"fmt"
)

// Table is one of the fixed set of tables the API exposes.
type Table string

const (
	TableCases      Table = "case_ids"
	TableCollisions Table = "collisions"
	TableParties    Table = "parties"
	TableVictims    Table = "victims"
)

// ErrUnknownTable is returned when a table name is not part of the exposed set.
var ErrUnknownTable = errors.New("unknown table")

var tables = []Table{TableCases, TableCollisions, TableParties, TableVictims}

// Tables returns every exposed table in catalog order.
func Tables() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

// ParseTable resolves a client-supplied name to a Table.
func ParseTable(name string) (Table, error) {
	for _, t := range tables {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// Valid reports whether t is one of the exposed tables. Conversions such as
// Table("x") bypass ParseTable, so SQL builders check this again.
func (t Table) Valid() bool {
	_, err := ParseTable(string(t))
	return err == nil
}

func (t Table) String() string { return string(t) }
