package client

import (
	"errors"
	"log"
	"slices"

	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/samber/lo"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomDirectory is the fetched set of rooms the user belongs to plus
// the active selection. Chat ids are positive; zero means no selection.
//
// Owned by the session loop, same as MessageStore.
type RoomDirectory struct {
	log      *log.Logger
	rooms    []types.Room
	activeId int
}

func NewRoomDirectory(logger *log.Logger) *RoomDirectory {
	return &RoomDirectory{log: logger}
}

// Replace swaps in a freshly fetched room set. If nothing is selected
// afterwards and a global room exists, it is auto-selected. The return
// value reports whether a room was newly selected.
func (d *RoomDirectory) Replace(rooms []types.Room) bool {
	d.rooms = slices.Clone(rooms)

	if d.activeId != 0 {
		if _, ok := d.find(d.activeId); ok {
			return false
		}
		d.log.Printf("active chat %d no longer listed, deselecting", d.activeId)
		d.activeId = 0
	}

	global, ok := lo.Find(d.rooms, func(r types.Room) bool {
		return r.Kind == types.RoomGlobal
	})
	if !ok {
		return false
	}

	d.activeId = global.Id
	return true
}

// Select changes the active room. Selecting the already-active room is
// a no-op and reports no change.
func (d *RoomDirectory) Select(chatId int) (bool, error) {
	if chatId == d.activeId {
		return false, nil
	}

	if _, ok := d.find(chatId); !ok {
		return false, ErrRoomNotFound
	}

	d.activeId = chatId
	return true, nil
}

// Add appends a server-created room. It never changes the selection.
func (d *RoomDirectory) Add(room types.Room) {
	d.rooms = append(d.rooms, room)
}

func (d *RoomDirectory) Remove(chatId int) {
	d.rooms = lo.Reject(d.rooms, func(r types.Room, _ int) bool {
		return r.Id == chatId
	})
	if d.activeId == chatId {
		d.activeId = 0
	}
}

// AddParticipant records a confirmed membership change.
func (d *RoomDirectory) AddParticipant(chatId int, username string) {
	for i := range d.rooms {
		if d.rooms[i].Id != chatId {
			continue
		}

		if !d.rooms[i].Participants.Contains(username) {
			d.rooms[i].Participants = append(d.rooms[i].Participants, username)
		}
		return
	}
}

func (d *RoomDirectory) Active() (types.Room, bool) {
	if d.activeId == 0 {
		return types.Room{}, false
	}

	return d.find(d.activeId)
}

func (d *RoomDirectory) Rooms() []types.Room {
	return slices.Clone(d.rooms)
}

func (d *RoomDirectory) Reset() {
	d.rooms = nil
	d.activeId = 0
}

func (d *RoomDirectory) find(chatId int) (types.Room, bool) {
	return lo.Find(d.rooms, func(r types.Room) bool {
		return r.Id == chatId
	})
}
