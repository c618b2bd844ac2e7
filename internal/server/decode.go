package server

import (
	"encoding/json"
	"io"
	"strings"
)

const maxRequestBytes = 1 << 20

type tokenRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// broadcastRequest addresses a room by key, by properties, or everyone when
// both are empty.
type broadcastRequest struct {
	Room    string         `json:"room,omitempty"`
	Props   map[string]any `json:"props,omitempty"`
	Event   string         `json:"event"`
	Payload any            `json:"payload,omitempty"`
}

type broadcastResponse struct {
	Room string `json:"room,omitempty"`
	Size int    `json:"size"`
}

type roomResponse struct {
	Room string `json:"room"`
	Size int    `json:"size"`
}

func decodeTokenRequest(body io.Reader) (tokenRequest, error) {
	var req tokenRequest
	if err := decodeBody(body, &req); err != nil {
		return req, err
	}
	if req.Password == "" {
		return req, errInvalidPayload
	}
	return req, nil
}

func decodeBroadcastRequest(body io.Reader) (broadcastRequest, error) {
	var req broadcastRequest
	if err := decodeBody(body, &req); err != nil {
		return req, err
	}
	req.Event = strings.TrimSpace(req.Event)
	if req.Event == "" {
		return req, errInvalidPayload
	}
	return req, nil
}

// decodeBody keeps numbers as json.Number so numeric properties render in
// room keys exactly as sent.
func decodeBody(body io.Reader, out any) error {
	if body == nil {
		return errInvalidPayload
	}
	dec := json.NewDecoder(io.LimitReader(body, maxRequestBytes))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errInvalidPayload
	}
	return nil
}
