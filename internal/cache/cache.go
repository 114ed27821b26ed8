package cache

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"
	"github.com/npezzotti/go-chatclient/internal/types"
)

// RoomCache persists per-room message logs so messages buffered for
// rooms the user never opened survive a client restart.
type RoomCache struct {
	db  *badger.DB
	log *log.Logger
}

func Open(path string, logger *log.Logger) (*RoomCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache at %q: %w", path, err)
	}

	return &RoomCache{db: db, log: logger}, nil
}

func logKey(chatId int) []byte {
	return []byte(fmt.Sprintf("room:log:%d", chatId))
}

func (c *RoomCache) SaveLog(chatId int, msgs []types.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal log: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(logKey(chatId), data)
	})
}

func (c *RoomCache) LoadLog(chatId int) ([]types.Message, error) {
	var msgs []types.Message
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(logKey(chatId))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &msgs)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load log for chat %d: %w", chatId, err)
	}

	return msgs, nil
}

func (c *RoomCache) DeleteLog(chatId int) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(logKey(chatId))
	})
}

func (c *RoomCache) Close() error {
	return c.db.Close()
}
