package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_serializePublishFrame(t *testing.T) {
	frame := NewPublishFrame("abc123", 1, "hello")

	expected := `{"id":"abc123","timestamp":"` + frame.Timestamp.Format(time.RFC3339Nano) +
		`","publish":{"chat_id":1,"message":"hello"}}`

	data, err := json.Marshal(frame)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(data), "expected serialized frame to match the expected format")
}

func Test_parseServerFrame(t *testing.T) {
	t.Run("acknowledgment", func(t *testing.T) {
		data := `{"id":"abc123","timestamp":"2025-01-02T15:04:05Z","response":{"error":"Unauthorized"}}`

		var frame ServerFrame
		err := json.Unmarshal([]byte(data), &frame)
		assert.NoError(t, err, "expected no error parsing frame")
		assert.Equal(t, "abc123", frame.Id, "expected frame id to match")
		assert.NotNil(t, frame.Response, "expected a response")
		assert.Equal(t, "Unauthorized", frame.Response.Error, "expected response error to match")
		assert.Nil(t, frame.Event, "expected no event")
	})
	t.Run("message event", func(t *testing.T) {
		data := `{"timestamp":"2025-01-02T15:04:05Z","event":{"sender":"alice","chat_id":1,"message":"hi"}}`

		var frame ServerFrame
		err := json.Unmarshal([]byte(data), &frame)
		assert.NoError(t, err, "expected no error parsing frame")
		assert.Nil(t, frame.Response, "expected no response")
		assert.NotNil(t, frame.Event, "expected an event")
		assert.Equal(t, "alice", frame.Event.Sender, "expected sender to match")
		assert.Equal(t, 1, frame.Event.ChatId, "expected chat id to match")
		assert.Equal(t, "hi", frame.Event.Body, "expected body to match")
	})
}
