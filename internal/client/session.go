package client

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/npezzotti/go-chatclient/internal/api"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/samber/lo"
)

var (
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrNoRoomSelected   = errors.New("no chat selected")
	ErrEmptyRoomName    = errors.New("chat name cannot be empty")
	ErrEmptyParticipant = errors.New("participant username cannot be empty")
)

// ChatSession serializes every state mutation through a single loop:
// user intents, REST completions and push events all run on the same
// goroutine, so the directory and store need no locking. Network calls
// themselves run on the caller's goroutine and only their completions
// enter the loop.
type ChatSession struct {
	log    *log.Logger
	api    *api.Client
	push   *PushChannel
	store  *MessageStore
	dir    *RoomDirectory
	stats  stats.Provider
	notify func(types.Message)

	session types.Session
	lastErr string
	// epoch invalidates in-flight snapshot fetches on every selection
	// change, so a stale response cannot clobber the new room's log
	epoch int

	calls chan func()
	stop  chan struct{}
	done  chan struct{}
}

// NewChatSession wires the session. notify, when non-nil, is invoked
// from the loop for messages appended to the active room.
func NewChatSession(logger *log.Logger, apiClient *api.Client, push *PushChannel, store *MessageStore, dir *RoomDirectory, st stats.Provider, notify func(types.Message)) *ChatSession {
	return &ChatSession{
		log:    logger,
		api:    apiClient,
		push:   push,
		store:  store,
		dir:    dir,
		stats:  st,
		notify: notify,
		calls:  make(chan func()),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *ChatSession) Run() {
	defer close(s.done)

	for {
		select {
		case fn := <-s.calls:
			fn()
		case ev := <-s.push.Events():
			s.handlePushEvent(ev)
		case <-s.stop:
			return
		}
	}
}

func (s *ChatSession) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	s.push.Close()
}

// do runs fn on the loop and waits for it to finish.
func (s *ChatSession) do(fn func()) {
	ran := make(chan struct{})
	select {
	case s.calls <- func() {
		fn()
		close(ran)
	}:
		<-ran
	case <-s.stop:
	}
}

func (s *ChatSession) setError(msg string) {
	s.lastErr = msg
	s.log.Println("error:", msg)
}

func (s *ChatSession) clearError() {
	s.lastErr = ""
}

// Login authenticates, opens the push channel and loads the room
// directory. Rate-limited and invalid-credential failures surface their
// distinct messages; everything else collapses to the fallback.
func (s *ChatSession) Login(ctx context.Context, username, password string) error {
	if err := s.api.Login(ctx, username, password); err != nil {
		s.do(func() { s.setError(api.UserMessage(err)) })
		return err
	}

	s.do(func() {
		s.session = types.Session{LoggedIn: true, Username: username}
		if exp, ok := s.api.SessionExpiry(); ok {
			s.session.ExpiresAt = exp
		}
		s.clearError()
	})

	s.push.Open()
	return s.RefreshRooms(ctx)
}

func (s *ChatSession) Register(ctx context.Context, username, password string) error {
	if err := s.api.Register(ctx, username, password); err != nil {
		s.do(func() { s.setError(api.UserMessage(err)) })
		return err
	}

	s.do(func() { s.clearError() })
	return nil
}

// Logout calls the backend and clears local session, room and message
// state whether or not that call succeeds; a failed logout must not
// leave a logged-in-looking client behind.
func (s *ChatSession) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	if err != nil {
		s.log.Println("logout:", err)
	}

	s.push.Close()
	s.do(func() {
		s.session = types.Session{}
		s.dir.Reset()
		s.store.Reset()
		s.lastErr = ""
		s.epoch++
	})

	return err
}

// RefreshRooms fetches the directory. On success the set is replaced
// wholesale; on failure prior state is untouched.
func (s *ChatSession) RefreshRooms(ctx context.Context) error {
	rooms, err := s.api.Chats(ctx)
	if err != nil {
		s.do(func() { s.setError("Error fetching chats") })
		return err
	}

	var req *snapshotReq
	s.do(func() {
		s.dir.Replace(rooms)
		s.store.Hydrate(lo.Map(rooms, func(r types.Room, _ int) int { return r.Id }))
		if room, ok := s.dir.Active(); ok {
			s.epoch++
			req = &snapshotReq{chatId: room.Id, epoch: s.epoch}
		}
		s.clearError()
	})

	if req != nil {
		return s.fetchSnapshot(ctx, *req)
	}
	return nil
}

// SelectRoom switches the active room and fetches its snapshot. The
// push channel already routes events for every room into the store, so
// subscription is in place before the snapshot is requested.
func (s *ChatSession) SelectRoom(ctx context.Context, chatId int) error {
	var req *snapshotReq
	var selErr error
	s.do(func() {
		changed, err := s.dir.Select(chatId)
		if err != nil {
			selErr = err
			s.setError(err.Error())
			return
		}
		if !changed {
			return
		}
		s.epoch++
		req = &snapshotReq{chatId: chatId, epoch: s.epoch}
	})

	if selErr != nil {
		return selErr
	}
	if req != nil {
		return s.fetchSnapshot(ctx, *req)
	}
	return nil
}

type snapshotReq struct {
	chatId int
	epoch  int
}

func (s *ChatSession) fetchSnapshot(ctx context.Context, req snapshotReq) error {
	msgs, err := s.api.Messages(ctx, req.chatId)
	s.do(func() {
		if req.epoch != s.epoch {
			s.log.Printf("discarding stale snapshot for chat %d", req.chatId)
			return
		}
		if room, ok := s.dir.Active(); !ok || room.Id != req.chatId {
			return
		}
		if err != nil {
			s.setError("Error fetching messages")
			return
		}

		s.store.ReplaceSnapshot(req.chatId, msgs)
		s.stats.Incr(stats.SnapshotFetches)
		s.clearError()
	})

	return err
}

// Send validates locally, then publishes over the push channel and
// waits for the acknowledgment. The sent message itself arrives back
// through the normal event path like everyone else's.
func (s *ChatSession) Send(ctx context.Context, body string) error {
	var chatId int
	var valErr error
	s.do(func() {
		if strings.TrimSpace(body) == "" {
			valErr = ErrEmptyMessage
			s.setError(valErr.Error())
			return
		}

		room, ok := s.dir.Active()
		if !ok {
			valErr = ErrNoRoomSelected
			s.setError(valErr.Error())
			return
		}
		chatId = room.Id
	})
	if valErr != nil {
		return valErr
	}

	if err := s.push.Publish(ctx, chatId, body); err != nil {
		s.do(func() { s.setError(err.Error()) })
		return err
	}

	s.do(func() { s.clearError() })
	return nil
}

// CreateRoom creates a group chat. The server-issued room is appended
// to the directory without being selected.
func (s *ChatSession) CreateRoom(ctx context.Context, name string, participants []string) error {
	if strings.TrimSpace(name) == "" {
		s.do(func() { s.setError(ErrEmptyRoomName.Error()) })
		return ErrEmptyRoomName
	}

	chatId, err := s.api.CreateChat(ctx, name, types.RoomGroup, participants)
	if err != nil {
		s.do(func() { s.setError("Error creating chat") })
		return err
	}

	s.do(func() {
		s.dir.Add(types.Room{
			Id:           chatId,
			Name:         name,
			Kind:         types.RoomGroup,
			Participants: participants,
		})
		s.clearError()
	})
	return nil
}

func (s *ChatSession) CreatePrivateRoom(ctx context.Context, participant string) error {
	if strings.TrimSpace(participant) == "" {
		s.do(func() { s.setError(ErrEmptyParticipant.Error()) })
		return ErrEmptyParticipant
	}

	chatId, err := s.api.CreatePrivateChat(ctx, participant)
	if err != nil {
		s.do(func() { s.setError("Error creating private chat") })
		return err
	}

	s.do(func() {
		var owner string
		if s.session.LoggedIn {
			owner = s.session.Username
		}
		s.dir.Add(types.Room{
			Id:           chatId,
			Name:         participant,
			Kind:         types.RoomPrivate,
			Participants: types.ParticipantList{owner, participant},
		})
		s.clearError()
	})
	return nil
}

// AddParticipant adds a user to the active room. Membership changes
// locally only after the backend confirms.
func (s *ChatSession) AddParticipant(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		s.do(func() { s.setError(ErrEmptyParticipant.Error()) })
		return ErrEmptyParticipant
	}

	var chatId int
	var valErr error
	s.do(func() {
		room, ok := s.dir.Active()
		if !ok {
			valErr = ErrNoRoomSelected
			s.setError(valErr.Error())
			return
		}
		chatId = room.Id
	})
	if valErr != nil {
		return valErr
	}

	if err := s.api.AddUserToChat(ctx, chatId, username); err != nil {
		s.do(func() { s.setError("Error adding user to chat") })
		return err
	}

	s.do(func() {
		s.dir.AddParticipant(chatId, username)
		s.clearError()
	})
	return nil
}

// ClearRoom clears a chat's history after backend confirmation and
// drops the room from the directory. Later pushes for the room still
// buffer normally.
func (s *ChatSession) ClearRoom(ctx context.Context, chatId int) error {
	if err := s.api.ClearChat(ctx, chatId); err != nil {
		s.do(func() { s.setError("Error clearing chat") })
		return err
	}

	s.do(func() {
		s.store.Clear(chatId)
		s.dir.Remove(chatId)
		s.clearError()
	})
	return nil
}

func (s *ChatSession) handlePushEvent(ev Event) {
	switch ev.Kind {
	case EventConnected:
		// resync the active room; events emitted while the channel was
		// down never reached us
		if room, ok := s.dir.Active(); ok {
			s.epoch++
			req := snapshotReq{chatId: room.Id, epoch: s.epoch}
			go s.fetchSnapshot(context.Background(), req)
		}
	case EventDisconnected:
		// the channel reconnects on its own
	case EventMessage:
		if ev.Message == nil {
			return
		}

		s.store.Append(*ev.Message)
		if s.notify != nil {
			if room, ok := s.dir.Active(); ok && room.Id == ev.Message.ChatId {
				s.notify(*ev.Message)
			}
		}
	}
}

// Messages returns the active room's log in arrival order.
func (s *ChatSession) Messages() []types.Message {
	var msgs []types.Message
	s.do(func() {
		if room, ok := s.dir.Active(); ok {
			msgs = s.store.RoomLog(room.Id)
		}
	})
	return msgs
}

func (s *ChatSession) Rooms() []types.Room {
	var rooms []types.Room
	s.do(func() { rooms = s.dir.Rooms() })
	return rooms
}

func (s *ChatSession) ActiveRoom() (types.Room, bool) {
	var room types.Room
	var ok bool
	s.do(func() { room, ok = s.dir.Active() })
	return room, ok
}

func (s *ChatSession) LastError() string {
	var msg string
	s.do(func() { msg = s.lastErr })
	return msg
}

func (s *ChatSession) State() types.Session {
	var sess types.Session
	s.do(func() { sess = s.session })
	return sess
}
