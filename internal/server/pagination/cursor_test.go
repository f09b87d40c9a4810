package pagination

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{
		Time: time.Date(2024, 5, 1, 12, 30, 45, 123456789, time.UTC),
		ID:   981,
	}

	encoded := Encode(want)
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !got.Time.Equal(want.Time) {
		t.Errorf("timestamp changed: %v vs %v", got.Time, want.Time)
	}
	if got.ID != want.ID {
		t.Errorf("id changed: %d vs %d", got.ID, want.ID)
	}
}

func TestEncodeNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	local := Cursor{Time: time.Date(2024, 5, 1, 14, 0, 0, 0, loc), ID: 1}

	got, err := Decode(Encode(local))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Time.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", got.Time.Location())
	}
	if !got.Time.Equal(local.Time) {
		t.Errorf("instant changed: %v vs %v", got.Time, local.Time)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"not base64":    "!!!",
		"no separator":  base64.URLEncoding.EncodeToString([]byte("justonefield")),
		"bad timestamp": base64.URLEncoding.EncodeToString([]byte("yesterday,5")),
		"bad id":        base64.URLEncoding.EncodeToString([]byte("2024-05-01T12:00:00Z,many")),
	}

	for name, cursor := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(cursor); err == nil {
				t.Errorf("expected an error for %q", cursor)
			}
		})
	}
}
