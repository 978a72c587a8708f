package domain

import "time"

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 50
)

// HistoryQuery selects messages older than a boundary, newest first.
// Exactly one of Room and Peer is set, Peer meaning the private conversation
// between the caller and that user. BeforeID wins over Before when both are set.
type HistoryQuery struct {
	Room     RoomName
	Peer     UserID
	Before   time.Time
	BeforeID MessageID
	Limit    int
}

// NormalizeLimit applies the default and the hard cap.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}

// Boundary returns the exclusive upper id of the query.
// The zero boundary means "from the newest message".
func (q HistoryQuery) Boundary() MessageID {
	if q.BeforeID != "" {
		return q.BeforeID
	}
	if q.Before.IsZero() {
		return ""
	}
	return BoundaryID(q.Before)
}
