// Package pagination provides the opaque cursor codec used to page through
// search history, newest first.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const cursorSeparator = ","
const timeFormat = time.RFC3339Nano // Use nano for precision

// Cursor marks the last row of a served page. The next page holds rows
// strictly older than this (timestamp, id) position.
type Cursor struct {
	Time time.Time
	ID   int64
}

// Encode renders a cursor as an opaque URL-safe string.
func Encode(c Cursor) string {
	key := fmt.Sprintf("%s%s%d", c.Time.UTC().Format(timeFormat), cursorSeparator, c.ID)
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// Decode parses an opaque cursor string back into its position.
func Decode(encoded string) (Cursor, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decodedBytes), cursorSeparator, 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("invalid cursor format")
	}

	ts, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid timestamp in cursor: %w", err)
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid id in cursor: %w", err)
	}

	return Cursor{Time: ts.UTC(), ID: id}, nil
}
