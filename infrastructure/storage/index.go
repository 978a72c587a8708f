//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../../mocks/mock_message_index.go -package=mocks
package storage

import (
	"chat-fanout/domain"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
)

const (
	fieldBody   = "body"
	fieldRoom   = "room"
	fieldSender = "sender"
)

// IMessageIndex is the full-text index of room messages.
// Private messages are never indexed.
type IMessageIndex interface {
	Index(msg domain.Message) error
	Search(ctx context.Context, room domain.RoomName, query string, limit int) ([]domain.MessageID, error)
	Close() error
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// NewMessageIndex opens a bluge index at path, or an in-memory one when path is empty.
func NewMessageIndex(path string, log *slog.Logger) (*MessageIndex, error) {
	cfg := bluge.InMemoryOnlyConfig()
	if path != "" {
		cfg = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("open bluge index: %w", err)
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

func (i *MessageIndex) Index(msg domain.Message) error {
	if msg.Destination.IsPrivate() {
		return nil
	}
	doc := bluge.NewDocument(string(msg.ID)).
		AddField(bluge.NewTextField(fieldBody, msg.Body).StoreValue()).
		AddField(bluge.NewKeywordField(fieldRoom, string(msg.Destination.Room)).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, string(msg.SenderID)))
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the ids of the room messages matching query, best match first.
func (i *MessageIndex) Search(ctx context.Context, room domain.RoomName, query string, limit int) ([]domain.MessageID, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("closing index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField(fieldBody)).
		AddMust(bluge.NewTermQuery(string(room)).SetField(fieldRoom))
	request := bluge.NewTopNSearch(domain.NormalizeLimit(limit), q)

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var ids []domain.MessageID
	match, err := dmi.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, domain.MessageID(value))
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}
