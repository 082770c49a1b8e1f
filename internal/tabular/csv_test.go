package tabular

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCell(t *testing.T) {
	ts := time.Date(2020, time.May, 4, 13, 30, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{[]byte("northbound"), "northbound"},
		{"male", "male"},
		{int64(1999), "1999"},
		{float64(2.5), "2.5"},
		{float64(3), "3"},
		{true, "true"},
		{ts, "2020-05-04T13:30:00Z"},
		{uint8(7), "7"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatCell(tc.in), "input %#v", tc.in)
	}
}
