package domain

import "fmt"

// AggregateKind names one of the fixed aggregate views over the parties table.
type AggregateKind string

const (
	// AggregateAtFaultVehicles lists vehicle and demographic fields of at-fault parties.
	AggregateAtFaultVehicles AggregateKind = "at_fault_vehicles"
	// AggregateTraumas counts people, killed and injured per age bucket.
	AggregateTraumas AggregateKind = "traumas"
)

// Age bucket labels produced by the trauma aggregate.
const (
	AgeGroupYoungs  = "youngs"
	AgeGroupAdults  = "adults"
	AgeGroupUnknown = "unknown"
)

// Aggregates returns every aggregate kind.
func Aggregates() []AggregateKind {
	return []AggregateKind{AggregateAtFaultVehicles, AggregateTraumas}
}

// ParseAggregate resolves a name such as "traumas" to an AggregateKind.
func ParseAggregate(name string) (AggregateKind, error) {
	for _, k := range Aggregates() {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown aggregate %q", name)
}

// ArtifactName is the file name the cached CSV is stored under in the data directory.
func (k AggregateKind) ArtifactName() string {
	switch k {
	case AggregateAtFaultVehicles:
		return "parties.csv"
	case AggregateTraumas:
		return "traumas.csv"
	default:
		return string(k) + ".csv"
	}
}

// DownloadName is the attachment file name offered to HTTP clients.
func (k AggregateKind) DownloadName() string {
	if k == AggregateAtFaultVehicles {
		return "vehicle_data.csv"
	}
	return k.ArtifactName()
}
