package domain

// FeatureColumns is the column order the at-fault classifier was trained on.
var FeatureColumns = []string{"party_age", "party_sex", "party_race"}

// PartyFeatures are the inputs of a single at-fault prediction.
type PartyFeatures struct {
	Age  float64 `json:"age"`
	Sex  string  `json:"sex"`
	Race string  `json:"race"`
}

// Frame is a single-row feature table handed to a classifier.
type Frame struct {
	Columns []string
	Row     []any
}

// Frame shapes the features into a one-row frame ordered by FeatureColumns.
func (f PartyFeatures) Frame() Frame {
	cols := make([]string, len(FeatureColumns))
	copy(cols, FeatureColumns)
	return Frame{
		Columns: cols,
		Row:     []any{f.Age, f.Sex, f.Race},
	}
}

// Value returns the cell for column, or nil when the frame lacks it.
func (fr Frame) Value(column string) any {
	for i, c := range fr.Columns {
		if c == column && i < len(fr.Row) {
			return fr.Row[i]
		}
	}
	return nil
}
