// Command genmock writes a mock SWITRS SQLite database with the four tables
// the API serves. Rows are drawn from a seeded generator, so the same flags
// always produce the same database.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/switrs.sqlite -cases 5000 -seed 42
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/collision-data-api/internal/store"
)

var baseDate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	sexes      = []string{"male", "female"}
	races      = []string{"white", "hispanic", "black", "asian", "other"}
	partyTypes = []string{"driver", "driver", "driver", "pedestrian", "bicyclist"}
	sobriety   = []string{"had not been drinking", "had been drinking, under influence", "impairment unknown", "not applicable"}
	directions = []string{"north", "south", "east", "west"}
	counties   = []string{"los angeles", "san diego", "orange", "alameda", "sacramento", "fresno"}
	roles      = []string{"driver", "passenger", "pedestrian", "bicyclist"}
)

type stats struct {
	cases, parties, victims int
	atFault                 int
	youngs, adults          int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the SQLite database")
	cases := flag.Int("cases", 1000, "number of collision cases to generate")
	seed := flag.Uint64("seed", 1, "generator seed")
	force := flag.Bool("force", false, "overwrite an existing database")
	flag.Parse()

	if *out == "" || *cases < 1 {
		flag.Usage()
		return errors.New("missing required flag -out or non-positive -cases")
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s exists, pass -force to overwrite", *out)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	_ = os.Remove(*out)

	db, err := sql.Open("sqlite3", *out)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(store.MockSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x5eed))
	st, err := generate(db, rng, *cases)
	if err != nil {
		return err
	}

	log.Printf("wrote %s", *out)
	printStats(st)
	return nil
}

func generate(db *sql.DB, rng *rand.Rand, n int) (stats, error) {
	var st stats
	tx, err := db.Begin()
	if err != nil {
		return st, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for i := 1; i <= n; i++ {
		caseID := fmt.Sprintf("%04d%06d", 2020, i)
		date := baseDate.AddDate(0, 0, rng.IntN(366))

		if _, err := tx.Exec(`INSERT INTO case_ids (case_id, db_year) VALUES (?, ?)`, caseID, date.Year()); err != nil {
			return st, fmt.Errorf("insert case: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO collisions (case_id, jurisdiction, county_location, collision_date) VALUES (?, ?, ?, ?)`,
			caseID, 1000+rng.IntN(9000), pick(rng, counties), date.Format(time.DateOnly)); err != nil {
			return st, fmt.Errorf("insert collision: %w", err)
		}
		st.cases++

		// Exactly one party is at fault per case.
		parties := 1 + rng.IntN(3)
		faulty := rng.IntN(parties)
		for p := range parties {
			if err := insertParty(tx, rng, caseID, p+1, p == faulty, &st); err != nil {
				return st, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return st, fmt.Errorf("commit: %w", err)
	}
	return st, nil
}

func insertParty(tx *sql.Tx, rng *rand.Rand, caseID string, number int, atFault bool, st *stats) error {
	age := 14 + rng.IntN(72)
	fault := 0
	if atFault {
		fault = 1
	}
	killed := 0
	if rng.IntN(100) < 2 {
		killed = 1
	}
	injured := rng.IntN(3)

	var drug any
	if rng.IntN(20) == 0 {
		drug = "under drug influence"
	}

	_, err := tx.Exec(`INSERT INTO parties (
		case_id, party_number, party_type, at_fault, party_sex, party_age,
		party_sobriety, party_drug_physical, direction_of_travel,
		vehicle_year, party_race, cellphone_in_use,
		party_number_killed, party_number_injured
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		caseID, number, pick(rng, partyTypes), fault, pick(rng, sexes), age,
		pick(rng, sobriety), drug, pick(rng, directions),
		1985+rng.IntN(36), pick(rng, races), boolInt(rng.IntN(25) == 0),
		killed, injured)
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	st.parties++

	if fault == 1 {
		st.atFault++
		switch {
		case age >= 18 && age <= 30:
			st.youngs++
		case age > 30:
			st.adults++
		}
	}

	for v := range rng.IntN(3) {
		_, err := tx.Exec(`INSERT INTO victims (case_id, party_number, victim_role, victim_sex, victim_age) VALUES (?, ?, ?, ?, ?)`,
			caseID, number, pick(rng, roles), pick(rng, sexes), rng.IntN(90)+v)
		if err != nil {
			return fmt.Errorf("insert victim: %w", err)
		}
		st.victims++
	}
	return nil
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func printStats(st stats) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Cases: %d, parties: %d, victims: %d\n", st.cases, st.parties, st.victims)
	fmt.Printf("At fault: %d\n", st.atFault)
	fmt.Printf("Trauma buckets: youngs=%d, adults=%d\n", st.youngs, st.adults)
}
