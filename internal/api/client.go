package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/npezzotti/go-chatclient/internal/types"
)

const (
	csrfCookieName  = "csrf_token"
	csrfHeaderName  = "X-CSRFToken"
	tokenCookieName = "token"
)

// Client is the REST half of the backend surface. The session cookie
// lives in its jar and is shared with the push channel's handshake.
type Client struct {
	log        *log.Logger
	baseURL    *url.URL
	httpClient *http.Client
}

func NewClient(logger *log.Logger, cfg *config.Config) (*Client, error) {
	base, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}

	return &Client{
		log:     logger,
		baseURL: base,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: cfg.RequestTimeout,
		},
	}, nil
}

// Jar exposes the cookie jar so the websocket handshake can present the
// same session cookie.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// WebsocketURL derives the push channel endpoint from the base URL.
func (c *Client) WebsocketURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	return u.String()
}

func (c *Client) csrfToken() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}

	return ""
}

// SessionExpiry reads the expiry claim from the session token cookie
// without verifying the signature; the client has no signing key and
// only uses this to report when the session will lapse.
func (c *Client) SessionExpiry() (time.Time, bool) {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name != tokenCookieName {
			continue
		}

		claims := jwt.MapClaims{}
		if _, _, err := new(jwt.Parser).ParseUnverified(ck.Value, claims); err != nil {
			c.log.Println("parse session token:", err)
			return time.Time{}, false
		}

		exp, ok := claims["exp"].(float64)
		if !ok {
			return time.Time{}, false
		}

		return time.Unix(int64(exp), 0), true
	}

	return time.Time{}, false
}

func (c *Client) doJson(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewUnexpectedError(0, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewUnexpectedError(resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}

	return nil
}

func (c *Client) apiError(resp *http.Response) *ApiError {
	var body struct {
		Error string `json:"error"`
	}
	// a body is optional on errors; fall back to the status text
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusForbidden:
		return NewRateLimitedError()
	case http.StatusUnauthorized:
		return NewUnauthorizedError(body.Error)
	case http.StatusConflict:
		return NewConflictError(body.Error)
	default:
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return NewUnexpectedError(resp.StatusCode, fmt.Errorf("%s", body.Error))
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.doJson(ctx, http.MethodPost, "/api/login", nil, credentialsRequest{
		Username: username,
		Password: password,
	}, nil)
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.doJson(ctx, http.MethodPost, "/api/register", nil, credentialsRequest{
		Username: username,
		Password: password,
	}, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJson(ctx, http.MethodPost, "/api/logout", nil, nil, nil)
}

func (c *Client) Users(ctx context.Context) ([]string, error) {
	var users []string
	if err := c.doJson(ctx, http.MethodGet, "/api/users", nil, nil, &users); err != nil {
		return nil, err
	}

	return users, nil
}

func (c *Client) Chats(ctx context.Context) ([]types.Room, error) {
	var rooms []types.Room
	if err := c.doJson(ctx, http.MethodGet, "/api/chats", nil, nil, &rooms); err != nil {
		return nil, err
	}

	return rooms, nil
}

type createChatRequest struct {
	Name         string         `json:"name"`
	Type         types.RoomKind `json:"type"`
	Participants []string       `json:"participants"`
}

type createChatResponse struct {
	ChatId int `json:"chat_id"`
}

func (c *Client) CreateChat(ctx context.Context, name string, kind types.RoomKind, participants []string) (int, error) {
	var resp createChatResponse
	err := c.doJson(ctx, http.MethodPost, "/api/chats", nil, createChatRequest{
		Name:         name,
		Type:         kind,
		Participants: participants,
	}, &resp)
	if err != nil {
		return 0, err
	}

	return resp.ChatId, nil
}

func (c *Client) CreatePrivateChat(ctx context.Context, participant string) (int, error) {
	var resp createChatResponse
	err := c.doJson(ctx, http.MethodPost, "/api/create_private_chat", nil, struct {
		Participant string `json:"participant"`
	}{Participant: participant}, &resp)
	if err != nil {
		return 0, err
	}

	return resp.ChatId, nil
}

func (c *Client) AddUserToChat(ctx context.Context, chatId int, username string) error {
	return c.doJson(ctx, http.MethodPost, "/api/add_user_to_chat", nil, struct {
		ChatId   int    `json:"chat_id"`
		Username string `json:"username"`
	}{ChatId: chatId, Username: username}, nil)
}

func (c *Client) ClearChat(ctx context.Context, chatId int) error {
	return c.doJson(ctx, http.MethodPost, "/api/clear_chat", nil, struct {
		ChatId int `json:"chat_id"`
	}{ChatId: chatId}, nil)
}

func (c *Client) Messages(ctx context.Context, chatId int) ([]types.Message, error) {
	query := url.Values{}
	query.Set("chat_id", fmt.Sprintf("%d", chatId))

	var msgs []types.Message
	if err := c.doJson(ctx, http.MethodGet, "/api/messages", query, nil, &msgs); err != nil {
		return nil, err
	}

	return msgs, nil
}

func (c *Client) Events(ctx context.Context) ([]types.CalendarEvent, error) {
	var events []types.CalendarEvent
	if err := c.doJson(ctx, http.MethodGet, "/api/events", nil, nil, &events); err != nil {
		return nil, err
	}

	return events, nil
}

func (c *Client) CreateEvent(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error) {
	var created types.CalendarEvent
	if err := c.doJson(ctx, http.MethodPost, "/api/events", nil, event, &created); err != nil {
		return types.CalendarEvent{}, err
	}

	return created, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id int) error {
	return c.doJson(ctx, http.MethodDelete, fmt.Sprintf("/api/events/%d", id), nil, nil, nil)
}
