package analysis

import (
	"testing"

	"budgeteer/internal/core"
)

func series(cents ...int64) []core.Money {
	out := make([]core.Money, len(cents))
	for i, c := range cents {
		out[i] = core.Money{Cents: c}
	}
	return out
}

func TestAnomalies(t *testing.T) {
	tests := []struct {
		name   string
		series []core.Money
		want   []bool
	}{
		{
			name:   "single outlier",
			series: series(-5000, -5100, -4900, -5000, -5050, -4950, -5000, -5100, -4900, -25000),
			want:   []bool{false, false, false, false, false, false, false, false, false, true},
		},
		{
			name:   "constant series flags nothing",
			series: series(-5000, -5000, -5000, -5000),
			want:   []bool{false, false, false, false},
		},
		{
			name:   "too short to judge",
			series: series(-5000),
			want:   []bool{false},
		},
		{
			name:   "empty",
			series: series(),
			want:   []bool{},
		},
		{
			name:   "nil series",
			series: nil,
			want:   nil,
		},
		{
			name:   "mild variation stays unflagged",
			series: series(-4800, -5200, -5000, -4900, -5100),
			want:   []bool{false, false, false, false, false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Anomalies(tt.series)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("flag[%d] = %v, want %v (series %v)", i, got[i], tt.want[i], tt.series)
				}
			}
		})
	}
}
