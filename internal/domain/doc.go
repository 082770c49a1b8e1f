// Package domain models the collision records served by the API.
//
// # Data Source
//
// Records follow the layout of the California Statewide Integrated Traffic
// Records System (SWITRS) extract: one database with four independent tables.
// The service only reads them; ingestion happens elsewhere.
//
//	case_ids    one row per accident case (case_id, db_year)
//	collisions  jurisdiction, location and case linkage fields
//	parties     people and vehicles involved in a collision
//	victims     injured or killed persons (role, sex, age, ...)
//
// Table names reach SQL only through [ParseTable], which resolves request
// text against the closed set above. Nothing else is ever interpolated into a
// statement.
//
// # Party Conventions
//
// at_fault:
//
//	Integer flag. 1 means the party caused the collision. Any other value,
//	including NULL, is treated as "not at fault" by every aggregate.
//
// party_age:
//
//	Whole years. NULL or values below 18 are excluded from trauma statistics.
//
// Age buckets (trauma aggregate):
//
//	youngs   18 <= age <= 30
//	adults   age > 30
//	unknown  anything the two rules above do not match
//
// # Prediction Features
//
// The at-fault classifier consumes a single-row frame with the columns
// party_age, party_sex and party_race, in that order. See [FeatureColumns].
package domain
