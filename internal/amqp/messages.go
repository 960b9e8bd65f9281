package amqp

import (
	"encoding/json"
	"errors"
	"fmt"

	"kakeibo/internal/core"
)

// EventEntryAppended is the message type carried in the AMQP Type property.
const EventEntryAppended = "entry.appended"

var ErrInvalidMessage = errors.New("invalid entry message")

// EntryAppendedMessage announces one appended ledger row. It carries only what
// the journal needs to detect reused identifiers, never the row contents.
type EntryAppendedMessage struct {
	core.AppendRecord
}

func NewEntryAppendedMessage(rec core.AppendRecord) *EntryAppendedMessage {
	return &EntryAppendedMessage{AppendRecord: rec}
}

func (m *EntryAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryAppendedMessageFromJSON decodes and checks a message body.
func EntryAppendedMessageFromJSON(data []byte) (*EntryAppendedMessage, error) {
	var msg EntryAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *EntryAppendedMessage) validate() error {
	switch {
	case m.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrInvalidMessage)
	case m.DocumentID == "":
		return fmt.Errorf("%w: missing document_id", ErrInvalidMessage)
	case m.Region == "":
		return fmt.Errorf("%w: missing region", ErrInvalidMessage)
	case m.EntryID < 1:
		return fmt.Errorf("%w: entry_id %d is not positive", ErrInvalidMessage, m.EntryID)
	}
	return nil
}
