package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// TokenSource supplies the bearer token current at call time.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// APIError is a non-success response from the chat backend. It keeps the
// status so callers can distinguish failure classes.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// SendResult is the response to a message post: always the caller's own
// message, optionally a generated bot reply.
type SendResult struct {
	Human models.Message  `json:"human"`
	Bot   *models.Message `json:"bot,omitempty"`
}

// Messages returns the result's messages in server order.
func (r SendResult) Messages() []models.Message {
	out := []models.Message{r.Human}
	if r.Bot != nil {
		out = append(out, *r.Bot)
	}
	return out
}

// Client consumes the server-owned REST endpoints.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListRooms fetches the rooms visible to the authenticated user.
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	body, err := c.do(ctx, http.MethodGet, "/rooms", "list_rooms", nil)
	if err != nil {
		return nil, err
	}
	var rooms []models.Room
	if err := decodeList(body, &rooms, "rooms"); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

// CreateRoom creates a room and returns the server's view of it.
func (c *Client) CreateRoom(ctx context.Context, name string, roomType models.RoomType, participantIDs []string) (models.Room, error) {
	payload := map[string]any{"name": name, "type": roomType}
	if len(participantIDs) > 0 {
		payload["participant_ids"] = participantIDs
	}
	body, err := c.do(ctx, http.MethodPost, "/rooms", "create_room", payload)
	if err != nil {
		return models.Room{}, err
	}
	var room models.Room
	if err := json.Unmarshal(body, &room); err != nil {
		return models.Room{}, fmt.Errorf("decode room: %w", err)
	}
	return room, nil
}

// GetMessages fetches the message history for a room. The reconciler
// imposes the canonical order, so server ordering is not relied upon.
func (c *Client) GetMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	body, err := c.do(ctx, http.MethodGet, "/rooms/"+roomID+"/messages", "get_messages", nil)
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := decodeList(body, &msgs, "messages"); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, nil
}

// PostMessage submits a message. The response is either the stored message
// alone or a {human, bot} pair when the room has a bot counterpart.
func (c *Client) PostMessage(ctx context.Context, roomID, content, messageType string) (SendResult, error) {
	payload := map[string]any{"content": content}
	if messageType != "" {
		payload["message_type"] = messageType
	}
	body, err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/messages", "post_message", payload)
	if err != nil {
		return SendResult{}, err
	}

	var pair SendResult
	if err := json.Unmarshal(body, &pair); err == nil && pair.Human.ID != "" {
		return pair, nil
	}
	var single models.Message
	if err := json.Unmarshal(body, &single); err != nil {
		return SendResult{}, fmt.Errorf("decode send response: %w", err)
	}
	if single.ID == "" {
		return SendResult{}, errors.New("decode send response: missing message id")
	}
	return SendResult{Human: single}, nil
}

// DeleteMessage soft-deletes a message server-side.
func (c *Client) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/rooms/"+roomID+"/messages/"+messageID, "delete_message", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path, route string, payload any) ([]byte, error) {
	ctx, span := otel.Tracer("chat-client/rest").Start(ctx, "rest."+route)
	defer span.End()

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveRESTDuration(route, time.Since(start))
	if err != nil {
		observability.IncRESTRequest(method, route, 0)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	observability.IncRESTRequest(method, route, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// decodeList accepts both a bare JSON array and an object wrapping the
// array under the given key.
func decodeList(body []byte, target any, key string) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, target)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	raw, ok := wrapper[key]
	if !ok {
		return fmt.Errorf("response missing %q", key)
	}
	return json.Unmarshal(raw, target)
}

func errorMessage(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}
