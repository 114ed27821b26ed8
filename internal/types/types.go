package types

import (
	"encoding/json"
	"strings"
	"time"
)

type Session struct {
	LoggedIn  bool      `json:"logged_in"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type RoomKind string

const (
	RoomGlobal  RoomKind = "global"
	RoomGroup   RoomKind = "group"
	RoomPrivate RoomKind = "private"
)

// ParticipantList accepts both wire encodings the backend produces:
// a JSON array of usernames on creation requests and a comma-joined
// string on chat listings. It always marshals as an array.
type ParticipantList []string

func (p *ParticipantList) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*p = names
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}

	if joined == "" {
		*p = nil
		return nil
	}

	*p = strings.Split(joined, ",")
	return nil
}

func (p ParticipantList) Contains(username string) bool {
	for _, name := range p {
		if name == username {
			return true
		}
	}

	return false
}

type Room struct {
	Id           int             `json:"id"`
	Name         string          `json:"name"`
	Kind         RoomKind        `json:"type"`
	Participants ParticipantList `json:"participants"`
}

type Message struct {
	Sender string `json:"sender"`
	ChatId int    `json:"chat_id"`
	Body   string `json:"message"`
}

type CalendarEvent struct {
	Id          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Creator     string `json:"creator,omitempty"`
}
