package core

import "testing"

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"42.50", 4250, false},
		{"-42.50", -4250, false},
		{"-42,50", -4250, false},
		{"1.234,56", 123456, false},
		{"0", 0, false},
		{"7", 700, false},
		{"-0.05", -5, false},
		{".5", 50, false},
		{"+12", 1200, false},
		{"", 0, true},
		{"12.345", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMoney(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Cents != tt.want {
				t.Errorf("ParseMoney(%q) = %d, want %d", tt.input, got.Cents, tt.want)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: -250}
	if a.Abs().Cents != 250 {
		t.Errorf("Abs = %d, want 250", a.Abs().Cents)
	}
	if got := a.Add(Money{Cents: 100}); got.Cents != -150 {
		t.Errorf("Add = %d, want -150", got.Cents)
	}
	if a.Float() != -2.5 {
		t.Errorf("Float = %v, want -2.5", a.Float())
	}
	if a.IsZero() || !(Money{}).IsZero() {
		t.Error("IsZero misreports")
	}
}
