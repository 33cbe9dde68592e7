package models

import (
	"strconv"
	"time"
)

// Record is one persisted chat message. The JSON keys double as the fallback
// log line format and the lookup endpoint's response body.
type Record struct {
	Timestamp   int64   `json:"ts"`
	ChannelID   int64   `json:"channel_id"`
	ChannelName *string `json:"channel_name"`
	AuthorID    int64   `json:"author_id"`
	Author      string  `json:"author"`
	Content     string  `json:"content"`
}

// Time returns the ingestion time in UTC.
func (r Record) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// ChannelLabel returns the channel name, or the numeric ID for channels
// without one.
func (r Record) ChannelLabel() string {
	if r.ChannelName != nil && *r.ChannelName != "" {
		return *r.ChannelName
	}
	return strconv.FormatInt(r.ChannelID, 10)
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
