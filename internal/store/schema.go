package store

// MockSchema creates the four collision tables with the columns the API
// reads. Fixtures and the mock database generator use it; real SWITRS
// databases ship their own, wider schema.
const MockSchema = `
CREATE TABLE case_ids (
	case_id TEXT PRIMARY KEY,
	db_year INTEGER
);
CREATE TABLE collisions (
	case_id TEXT PRIMARY KEY,
	jurisdiction INTEGER,
	county_location TEXT,
	collision_date TEXT
);
CREATE TABLE parties (
	id INTEGER PRIMARY KEY,
	case_id TEXT,
	party_number INTEGER,
	party_type TEXT,
	at_fault INTEGER,
	party_sex TEXT,
	party_age INTEGER,
	party_sobriety TEXT,
	party_drug_physical TEXT,
	direction_of_travel TEXT,
	vehicle_year INTEGER,
	party_race TEXT,
	cellphone_in_use INTEGER,
	party_number_killed INTEGER,
	party_number_injured INTEGER
);
CREATE TABLE victims (
	id INTEGER PRIMARY KEY,
	case_id TEXT,
	party_number INTEGER,
	victim_role TEXT,
	victim_sex TEXT,
	victim_age INTEGER
);
`
