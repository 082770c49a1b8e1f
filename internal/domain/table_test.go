package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable_KnownNames(t *testing.T) {
	for _, name := range []string{"case_ids", "collisions", "parties", "victims"} {
		tbl, err := ParseTable(name)
		require.NoError(t, err)
		assert.Equal(t, name, tbl.String())
		assert.True(t, tbl.Valid())
	}
}

func TestParseTable_RejectsEverythingElse(t *testing.T) {
	for _, name := range []string{
		"",
		"PARTIES",
		"parties; DROP TABLE parties",
		"sqlite_master",
		"parties ",
	} {
		_, err := ParseTable(name)
		require.Error(t, err, "name %q", name)
		assert.ErrorIs(t, err, ErrUnknownTable)
	}
}

func TestTable_ValidRejectsConversions(t *testing.T) {
	assert.False(t, Table("victims--").Valid())
}

func TestTables_ReturnsCopy(t *testing.T) {
	got := Tables()
	got[0] = "mutated"
	assert.Equal(t, TableCases, Tables()[0])
}

func TestAggregateKind_Names(t *testing.T) {
	assert.Equal(t, "parties.csv", AggregateAtFaultVehicles.ArtifactName())
	assert.Equal(t, "vehicle_data.csv", AggregateAtFaultVehicles.DownloadName())
	assert.Equal(t, "traumas.csv", AggregateTraumas.ArtifactName())
	assert.Equal(t, "traumas.csv", AggregateTraumas.DownloadName())
}

func TestParseAggregate(t *testing.T) {
	k, err := ParseAggregate("traumas")
	require.NoError(t, err)
	assert.Equal(t, AggregateTraumas, k)

	_, err = ParseAggregate("victims")
	assert.Error(t, err)
}
