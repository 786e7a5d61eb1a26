package parser

import (
	"testing"
	"time"
)

func TestParseDate_OffsetWithZoneAbbrev(t *testing.T) {
	got, hasOffset, err := ParseDate("Mon, 2 Oct 2000 10:30:00 -0700 (PDT)")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if !hasOffset {
		t.Error("hasOffset = false, want true")
	}
	_, offset := got.Zone()
	if offset != -7*3600 {
		t.Errorf("offset = %d, want -25200", offset)
	}
	if got.UTC().Hour() != 17 {
		t.Errorf("UTC hour = %d, want 17", got.UTC().Hour())
	}
}

func TestParseDateIn_NaiveFormsUseLocation(t *testing.T) {
	loc := time.FixedZone("", -6*3600)
	cases := []string{
		"Monday, October 02, 2000 10:30 AM",
		"Monday, October 2, 2000 10:30 AM",
		"Mon, 2 Oct 2000 10:30:00",
	}
	for _, in := range cases {
		got, hasOffset, err := ParseDateIn(in, loc)
		if err != nil {
			t.Errorf("ParseDateIn(%q) error = %v", in, err)
			continue
		}
		if hasOffset {
			t.Errorf("ParseDateIn(%q) hasOffset = true, want false", in)
		}
		if _, offset := got.Zone(); offset != -6*3600 {
			t.Errorf("ParseDateIn(%q) offset = %d, want -21600", in, offset)
		}
		if got.Hour() != 10 || got.Minute() != 30 {
			t.Errorf("ParseDateIn(%q) = %v, want 10:30 local", in, got)
		}
	}
}

func TestParseDate_Unrecognized(t *testing.T) {
	if _, _, err := ParseDate("yesterday-ish"); err == nil {
		t.Fatal("expected error for unrecognized date format")
	}
	if _, _, err := ParseDate("   "); err == nil {
		t.Fatal("expected error for empty date string")
	}
}
