package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/teris-io/shortid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
	eventBuffer    = 256
)

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMessage
)

// Event is what the push channel surfaces to its consumer: lifecycle
// transitions and room-scoped message events.
type Event struct {
	Kind    EventKind
	Message *types.Message
}

var (
	ErrNotConnected   = errors.New("not connected")
	ErrChannelClosed  = errors.New("push channel closed")
	ErrChannelBackups = errors.New("send queue full")
)

// PushChannel maintains the single persistent websocket for a client
// session. It reconnects with capped exponential backoff until closed
// and correlates publish acknowledgments by frame id.
type PushChannel struct {
	log    *log.Logger
	url    string
	dialer *websocket.Dialer
	stats  stats.Provider
	sid    *shortid.Shortid

	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu      sync.Mutex
	state   ConnState
	conn    *websocket.Conn
	pending map[string]chan *Response
	opened  bool
	stop    chan struct{}
	done    chan struct{}

	send   chan *ClientFrame
	events chan Event
}

func NewPushChannel(logger *log.Logger, wsURL string, jar http.CookieJar, st stats.Provider, initialBackoff, maxBackoff time.Duration) (*PushChannel, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("new shortid: %w", err)
	}

	return &PushChannel{
		log: logger,
		url: wsURL,
		dialer: &websocket.Dialer{
			Jar:              jar,
			HandshakeTimeout: 10 * time.Second,
		},
		stats:          st,
		sid:            sid,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		state:          StateDisconnected,
		pending:        make(map[string]chan *Response),
		send:           make(chan *ClientFrame, sendBufferSize),
		events:         make(chan Event, eventBuffer),
	}, nil
}

// Events never closes; it spans reconnects and open/close cycles.
func (pc *PushChannel) Events() <-chan Event {
	return pc.events
}

func (pc *PushChannel) State() ConnState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *PushChannel) setState(s ConnState) {
	pc.mu.Lock()
	pc.state = s
	pc.mu.Unlock()
}

// Open starts the connect loop. It is a no-op while already open and
// may be called again after Close for a new session.
func (pc *PushChannel) Open() {
	pc.mu.Lock()
	if pc.opened {
		pc.mu.Unlock()
		return
	}
	pc.opened = true
	pc.stop = make(chan struct{})
	pc.done = make(chan struct{})
	stop, done := pc.stop, pc.done
	pc.mu.Unlock()

	go pc.run(stop, done)
}

func (pc *PushChannel) Close() {
	pc.mu.Lock()
	if !pc.opened {
		pc.mu.Unlock()
		return
	}
	pc.opened = false
	close(pc.stop)
	if pc.conn != nil {
		pc.conn.Close()
	}
	done := pc.done
	pc.mu.Unlock()

	<-done
}

func (pc *PushChannel) run(stop, done chan struct{}) {
	defer close(done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = pc.initialBackoff
	bo.MaxInterval = pc.maxBackoff
	bo.MaxElapsedTime = 0

	for {
		pc.setState(StateConnecting)

		conn, _, err := pc.dialer.Dial(pc.url, nil)
		if err != nil {
			wait := bo.NextBackOff()
			pc.log.Printf("dial %s: %v, retrying in %s", pc.url, err, wait)
			select {
			case <-time.After(wait):
				continue
			case <-stop:
				pc.setState(StateDisconnected)
				return
			}
		}
		bo.Reset()

		pc.mu.Lock()
		pc.conn = conn
		pc.state = StateConnected
		pc.mu.Unlock()

		pc.stats.Incr(stats.Connects)
		pc.emit(Event{Kind: EventConnected})

		readDone := make(chan struct{})
		go pc.writePump(conn, readDone, stop)
		pc.readPump(conn)
		close(readDone)
		conn.Close()

		pc.mu.Lock()
		pc.conn = nil
		pc.state = StateDisconnected
		pc.failPending()
		pc.mu.Unlock()

		pc.stats.Incr(stats.Disconnects)
		pc.emit(Event{Kind: EventDisconnected})

		select {
		case <-stop:
			return
		default:
		}
	}
}

func (pc *PushChannel) writePump(conn *websocket.Conn, readDone, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-pc.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				pc.log.Println("write frame:", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-readDone:
			return
		case <-stop:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		}
	}
}

func (pc *PushChannel) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				pc.log.Printf("ws: read: %v", err)
			}
			return
		}

		var frame ServerFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			pc.log.Println("error parsing frame:", err)
			continue
		}

		switch {
		case frame.Response != nil:
			pc.resolve(frame.Id, frame.Response)
		case frame.Event != nil:
			pc.stats.Incr(stats.MessagesReceived)
			pc.emit(Event{Kind: EventMessage, Message: frame.Event})
		}
	}
}

func (pc *PushChannel) emit(ev Event) {
	select {
	case pc.events <- ev:
	default:
		pc.log.Println("event channel full, dropping event")
	}
}

func (pc *PushChannel) resolve(id string, resp *Response) {
	pc.mu.Lock()
	ackChan, ok := pc.pending[id]
	delete(pc.pending, id)
	pc.mu.Unlock()

	if !ok {
		pc.log.Printf("acknowledgment for unknown frame %q", id)
		return
	}

	ackChan <- resp
}

// failPending is called with pc.mu held when the connection drops.
// Closing the channels makes waiting publishers fail fast.
func (pc *PushChannel) failPending() {
	for id, ackChan := range pc.pending {
		delete(pc.pending, id)
		close(ackChan)
	}
}

func (pc *PushChannel) discard(id string) {
	pc.mu.Lock()
	delete(pc.pending, id)
	pc.mu.Unlock()
}

// Publish sends one message and waits for the server's per-send
// acknowledgment. A non-empty ack error becomes the returned error.
func (pc *PushChannel) Publish(ctx context.Context, chatId int, body string) error {
	id, err := pc.sid.Generate()
	if err != nil {
		return fmt.Errorf("generate frame id: %w", err)
	}

	ackChan := make(chan *Response, 1)

	pc.mu.Lock()
	if !pc.opened {
		pc.mu.Unlock()
		return ErrChannelClosed
	}
	if pc.state != StateConnected {
		pc.mu.Unlock()
		return ErrNotConnected
	}
	pc.pending[id] = ackChan
	stop := pc.stop
	pc.mu.Unlock()

	select {
	case pc.send <- NewPublishFrame(id, chatId, body):
	default:
		pc.discard(id)
		return ErrChannelBackups
	}

	select {
	case resp, ok := <-ackChan:
		if !ok {
			return ErrNotConnected
		}
		if resp.Error != "" {
			pc.stats.Incr(stats.SendErrors)
			return errors.New(resp.Error)
		}
		pc.stats.Incr(stats.MessagesSent)
		return nil
	case <-ctx.Done():
		pc.discard(id)
		return ctx.Err()
	case <-stop:
		pc.discard(id)
		return ErrChannelClosed
	}
}
