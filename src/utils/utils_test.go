package utils

import "testing"

func TestRoundFloat(t *testing.T) {
	tests := []struct {
		val       float64
		precision uint
		want      float64
	}{
		{1.23456, 2, 1.23},
		{2.5, 0, 3},
		{-1.005, 1, -1.0},
		{100, 0, 100},
	}
	for _, tt := range tests {
		if got := RoundFloat(tt.val, tt.precision); got != tt.want {
			t.Errorf("RoundFloat(%v, %d) = %v, want %v", tt.val, tt.precision, got, tt.want)
		}
	}
}

func TestGenerateETagIsStable(t *testing.T) {
	payload := map[string]string{"symbol": "AAPL"}
	first, err := GenerateETag(payload)
	if err != nil {
		t.Fatalf("GenerateETag() error = %v", err)
	}
	second, err := GenerateETag(payload)
	if err != nil {
		t.Fatalf("GenerateETag() error = %v", err)
	}
	if first != second {
		t.Errorf("GenerateETag() not stable: %q != %q", first, second)
	}
	if len(first) != 64 {
		t.Errorf("GenerateETag() length = %d, want 64", len(first))
	}
}

func TestGenerateETagUnmarshalable(t *testing.T) {
	if _, err := GenerateETag(func() {}); err == nil {
		t.Error("GenerateETag() with func value expected error, got nil")
	}
}
