package client

import (
	"log"
	"slices"

	"github.com/npezzotti/go-chatclient/internal/types"
)

// LogCache persists room logs across restarts. A nil cache disables
// persistence.
type LogCache interface {
	SaveLog(chatId int, msgs []types.Message) error
	LoadLog(chatId int) ([]types.Message, error)
	DeleteLog(chatId int) error
}

// MessageStore holds the per-room, append-only message logs. Events are
// routed into the log of the room they target, whether or not that room
// is the active one, so nothing is lost while the user looks elsewhere.
//
// The store is owned by the session loop and is not safe for concurrent
// use on its own.
type MessageStore struct {
	log   *log.Logger
	cache LogCache
	logs  map[int][]types.Message
}

func NewMessageStore(logger *log.Logger, cache LogCache) *MessageStore {
	return &MessageStore{
		log:   logger,
		cache: cache,
		logs:  make(map[int][]types.Message),
	}
}

// Append adds one message to the end of its room's log. Arrival order is
// log order; no reordering by timestamp.
func (ms *MessageStore) Append(msg types.Message) {
	ms.logs[msg.ChatId] = append(ms.logs[msg.ChatId], msg)
	ms.persist(msg.ChatId)
}

// ReplaceSnapshot overwrites a room's log wholesale. The snapshot is
// authoritative at fetch time; this is not a merge.
func (ms *MessageStore) ReplaceSnapshot(chatId int, msgs []types.Message) {
	ms.logs[chatId] = slices.Clone(msgs)
	ms.persist(chatId)
}

// Clear empties a room's log. Later events for the room append normally.
func (ms *MessageStore) Clear(chatId int) {
	ms.logs[chatId] = nil
	if ms.cache != nil {
		if err := ms.cache.DeleteLog(chatId); err != nil {
			ms.log.Printf("delete cached log for chat %d: %v", chatId, err)
		}
	}
}

// Hydrate loads cached logs for rooms the store has not seen yet.
func (ms *MessageStore) Hydrate(chatIds []int) {
	if ms.cache == nil {
		return
	}

	for _, id := range chatIds {
		if _, ok := ms.logs[id]; ok {
			continue
		}

		msgs, err := ms.cache.LoadLog(id)
		if err != nil {
			ms.log.Printf("hydrate chat %d: %v", id, err)
			continue
		}
		if len(msgs) > 0 {
			ms.logs[id] = msgs
		}
	}
}

func (ms *MessageStore) RoomLog(chatId int) []types.Message {
	return slices.Clone(ms.logs[chatId])
}

func (ms *MessageStore) Reset() {
	ms.logs = make(map[int][]types.Message)
}

func (ms *MessageStore) persist(chatId int) {
	if ms.cache == nil {
		return
	}

	if err := ms.cache.SaveLog(chatId, ms.logs[chatId]); err != nil {
		ms.log.Printf("save log for chat %d: %v", chatId, err)
	}
}
