package models

import "time"

// RawItem is the common intermediate shape emitted by the source adapters.
// Each adapter decodes its own wire format and maps it into this struct;
// everything past the adapter boundary only sees RawItem.
type RawItem struct {
	Source      Source
	NativeID    string // source-native identifier, empty if the source has none
	Title       string
	URL         string
	Author      string
	Description string
	PublishedAt time.Time // zero when the source omits it
	Points      int
	Comments    int
	Reactions   int
	ReadingTime int
	Tags        []string
}
