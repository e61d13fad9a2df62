package amqp

import (
	"encoding/json"
	"time"
)

// InboundEventMessage carries one user utterance from the webhook to the
// event worker. EventID is the gateway's delivery id and keys the dedup
// cache; exactly one of Text or Image is set.
type InboundEventMessage struct {
	EventID   string    `json:"event_id"`
	Owner     string    `json:"owner"`
	Text      string    `json:"text,omitempty"`
	Image     []byte    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInboundEventMessage(eventID, owner, text string, image []byte) *InboundEventMessage {
	return &InboundEventMessage{
		EventID:   eventID,
		Owner:     owner,
		Text:      text,
		Image:     image,
		Timestamp: time.Now(),
	}
}

func (m *InboundEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InboundEventMessageFromJSON(data []byte) (*InboundEventMessage, error) {
	var msg InboundEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReplyMessage is the rendered answer for the chat gateway to deliver.
type ReplyMessage struct {
	EventID   string    `json:"event_id"`
	Owner     string    `json:"owner"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReplyMessage(eventID, owner, text string) *ReplyMessage {
	return &ReplyMessage{
		EventID:   eventID,
		Owner:     owner,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func (m *ReplyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReplyMessageFromJSON(data []byte) (*ReplyMessage, error) {
	var msg ReplyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExportRequestMessage asks the export worker to back up one transaction.
// It carries only the ID; the worker fetches the record from the store.
type ExportRequestMessage struct {
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewExportRequestMessage(transactionID string) *ExportRequestMessage {
	return &ExportRequestMessage{
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
