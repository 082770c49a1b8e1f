package tabular

import (
	"fmt"

	"github.com/couchcryptid/collision-data-api/internal/domain"
)

const atFaultVehiclesQuery = `SELECT case_id, vehicle_year, party_sex, party_age, cellphone_in_use, party_race
FROM parties
WHERE at_fault = 1`

// Groups come back in age_group order so the artifact is reproducible.
const traumasQuery = `SELECT CASE
           WHEN party_age >= 18 AND party_age <= 30 THEN 'youngs'
           WHEN party_age > 30 THEN 'adults'
           ELSE 'unknown'
       END                       AS age_group,
       COUNT(*)                  AS total_people,
       SUM(party_number_killed)  AS total_killed,
       SUM(party_number_injured) AS total_injured
FROM parties
WHERE party_age >= 18 AND at_fault = 1
GROUP BY age_group
ORDER BY age_group`

// AggregateQuery returns the SQL text of an aggregate. Both statements are
// valid on SQLite and PostgreSQL.
func AggregateQuery(kind domain.AggregateKind) (string, error) {
	switch kind {
	case domain.AggregateAtFaultVehicles:
		return atFaultVehiclesQuery, nil
	case domain.AggregateTraumas:
		return traumasQuery, nil
	default:
		return "", fmt.Errorf("unknown aggregate %q", kind)
	}
}
