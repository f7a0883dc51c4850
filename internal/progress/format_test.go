package progress

import "testing"

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1536, "2 KB"},
		{1048575, "1024 KB"},
		{1048576, "1.0 MB"},
		{1572864, "1.5 MB"},
		{1073741823, "1024.0 MB"},
		{1073741824, "1.00 GB"},
		{5368709120, "5.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		bps  float64
		want string
	}{
		{0, "0 B/s"},
		{512.4, "512 B/s"},
		{1023, "1023 B/s"},
		{1024, "1 KB/s"},
		{1048575, "1024 KB/s"},
		{1048576, "1.0 MB/s"},
		{2097152, "2.0 MB/s"},
	}
	for _, tt := range tests {
		if got := FormatSpeed(tt.bps); got != tt.want {
			t.Errorf("FormatSpeed(%v) = %q, want %q", tt.bps, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0, "0.0%"},
		{50, "50.0%"},
		{33.333333, "33.3%"},
		{100, "100.0%"},
	}
	for _, tt := range tests {
		if got := FormatPercent(tt.p); got != tt.want {
			t.Errorf("FormatPercent(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestToFixedRoundsHalfAwayFromZero(t *testing.T) {
	// 2.5 KiB exactly is a tie; %.0f would render "2".
	if got := FormatSize(2560); got != "3 KB" {
		t.Fatalf("FormatSize(2560) = %q, want %q", got, "3 KB")
	}
}
