package textnorm

import "testing"

func TestStripNoise(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"scene release", "Inception.2010.1080p.BluRay.x264-GROUP", "Inception"},
		{"underscores", "The_Dark_Knight_720p_WEB-DL", "The Dark Knight"},
		{"bracket tags", "[YTS] Arrival (2016) [1080p]", "Arrival"},
		{"trailer suffix", "Dune Official Trailer #2", "Dune"},
		{"teaser in parens", "Oppenheimer (Teaser)", "Oppenheimer"},
		{"trailer with quality", "Tenet - Final Trailer HD", "Tenet"},
		{"file extension", "My Neighbor Totoro.mkv", "My Neighbor Totoro"},
		{"mid-string codec", "Heat 1995 x265 HEVC", "Heat 1995"},
		{"prose title untouched", "The Web of Lies", "The Web of Lies"},
		{"clean title", "Inception", "Inception"},
		{"all noise keeps input", "1080p", "1080p"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripNoise(tt.input); got != tt.want {
				t.Errorf("StripNoise(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBaseTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Mission: Impossible - Fallout", "Mission"},
		{"Inception: The Cobol Job", "Inception"},
		{"Alien - Director's Cut.2003.720p", "Alien"},
		{"Up", "Up"},
	}
	for _, tt := range tests {
		if got := BaseTitle(tt.input); got != tt.want {
			t.Errorf("BaseTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		input    string
		wantYear int
		wantOK   bool
	}{
		{"Inception (2010)", 2010, true},
		{"Inception.2010.1080p.BluRay.x264-GROUP", 2010, true},
		{"Heat.1995.x265", 1995, true},
		{"Heat_1995_1080p", 1995, true},
		{"Heat 1995 x265", 0, false},
		{"Wonder Woman 1984", 0, false},
		{"Death Race 2000", 0, false},
		{"Wonder Woman 1984 (2020)", 2020, true},
		{"2012", 0, false},
		{"2001 A Space Odyssey", 0, false},
		{"Blade Runner 2049", 0, false},
		{"(500) Days of Summer (2009)", 2009, true},
		{"No Year Here", 0, false},
	}
	for _, tt := range tests {
		year, ok := ExtractYear(tt.input)
		if year != tt.wantYear || ok != tt.wantOK {
			t.Errorf("ExtractYear(%q) = (%d, %v), want (%d, %v)", tt.input, year, ok, tt.wantYear, tt.wantOK)
		}
	}
}
