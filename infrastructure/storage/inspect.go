package storage

import (
	"chat-fanout/domain"
	"chat-fanout/internal"
	"fmt"
	"strings"
)

// InspectMapper renders message and user records for the debug inspector.
func InspectMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "msg:id:"):
		var msg domain.Message
		if err := unmarshal(val, &msg); err != nil {
			row.Detail = "Error: " + err.Error()
			return row
		}
		row.Type = "ROOM"
		row.Namespace = string(msg.Destination.Room)
		if msg.Destination.IsPrivate() {
			row.Type = "DM"
			row.Namespace = fmt.Sprintf("%s>%s", msg.SenderID, msg.Destination.Recipient)
		}
		row.Timestamp = msg.CreatedAt.Format("15:04:05.000")
		row.Detail = fmt.Sprintf("%s: %s (%d reactions, read by %d)",
			msg.SenderName, msg.Body, len(msg.Reactions), len(msg.ReadBy))
	case strings.HasPrefix(key, "user:id:"):
		var user domain.User
		if err := unmarshal(val, &user); err != nil {
			row.Detail = "Error: " + err.Error()
			return row
		}
		row.Type = "USER"
		row.Timestamp = user.CreatedAt.Format("2006-01-02 15:04")
		row.Detail = user.Username
	case strings.HasPrefix(key, "user:name:"):
		row.Detail = "-> " + string(val)
	}
	return row
}
