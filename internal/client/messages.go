package client

import (
	"time"

	"github.com/npezzotti/go-chatclient/internal/types"
)

type BaseFrame struct {
	Id        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientFrame is what the client writes on the push channel. Publishes
// carry a correlation id; the server echoes it on the acknowledgment.
type ClientFrame struct {
	BaseFrame
	Publish *Publish `json:"publish,omitempty"`
}

type Publish struct {
	ChatId  int    `json:"chat_id"`
	Message string `json:"message"`
}

// ServerFrame is what the server writes: either an acknowledgment for a
// publish (Response) or a room-scoped message event.
type ServerFrame struct {
	BaseFrame
	Response *Response      `json:"response,omitempty"`
	Event    *types.Message `json:"event,omitempty"`
}

type Response struct {
	Error string `json:"error,omitempty"`
}

func NewPublishFrame(id string, chatId int, body string) *ClientFrame {
	return &ClientFrame{
		BaseFrame: BaseFrame{
			Id:        id,
			Timestamp: Now(),
		},
		Publish: &Publish{
			ChatId:  chatId,
			Message: body,
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
