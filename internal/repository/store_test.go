package repository

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in       string
		endpoint string
		wantErr  bool
	}{
		{"p", "primes", false},
		{"f", "fibo", false},
		{"e", "even", false},
		{"r", "rand", false},
		{"x", "", true},
		{"", "", true},
		{"P", "", true},
	}
	for _, tt := range tests {
		c, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q): wantErr=%v, got %v", tt.in, tt.wantErr, err)
			continue
		}
		if !tt.wantErr && c.Endpoint() != tt.endpoint {
			t.Errorf("ParseCategory(%q).Endpoint() = %q, want %q", tt.in, c.Endpoint(), tt.endpoint)
		}
	}
}

func TestMean(t *testing.T) {
	tests := []struct {
		in   []int64
		want float64
	}{
		{nil, 0},
		{[]int64{2, 4, 6}, 4},
		{[]int64{1, 2}, 1.5},
		{[]int64{-3, 3}, 0},
	}
	for _, tt := range tests {
		if got := Mean(tt.in); got != tt.want {
			t.Errorf("Mean(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
