package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bharatgo/chat-widget/pkg/session"
)

// errorBodyLimit bounds how much of a failed reply is kept for the error
// message.
const errorBodyLimit = 8 << 10

// Client talks to the answering service on behalf of one widget instance.
// Calls are not serialized; the caller disables submission while a request
// is outstanding.
type Client struct {
	url      string
	http     *http.Client
	sessions *session.Manager
	profile  ProfileSource
	tokenFn  func(ctx context.Context) string
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithProfileSource wires the collaborator that serves fresh contact
// details for authenticated actors.
func WithProfileSource(src ProfileSource) ClientOption {
	return func(c *Client) { c.profile = src }
}

// WithTokenFunc overrides where the client looks for the external auth
// token when deciding whether a profile fetch is worth attempting.
func WithTokenFunc(fn func(ctx context.Context) string) ClientOption {
	return func(c *Client) { c.tokenFn = fn }
}

func NewClient(url string, sessions *session.Manager, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.New("chatapi: empty service url")
	}
	if sessions == nil {
		return nil, errors.New("chatapi: nil session manager")
	}
	c := &Client{url: url, http: http.DefaultClient, sessions: sessions}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ask sends one question and returns the normalized answer.
//
// Side effects on the session manager: the session is rotated when the
// server issues a new id (dropping contact details, and dropping history if
// a previous session existed), touched when the id is reused, cleared when
// the server replies 401 or 440, and updated with any changed contact
// details the server reports.
func (c *Client) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("chatapi: empty question")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	persisted := c.sessions.UserInfo(ctx)
	info := c.resolveUserInfo(ctx, persisted)
	prevID, hadPrev := c.sessions.SessionID(ctx)

	reqBody := askRequest{Question: question, UserInfo: info}
	if hadPrev {
		reqBody.SessionID = prevID
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "chatapi: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "chatapi: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "chatapi: send question")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == StatusLoginTimeout {
			// The server no longer recognizes us; recover by starting fresh.
			c.sessions.Clear(ctx)
		}
		return nil, &StatusError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var raw askResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "chatapi: decode response")
	}

	switch {
	case raw.SessionID != "" && raw.SessionID != prevID:
		// A new server-side conversation: contact details and history from
		// the old one no longer apply.
		c.sessions.SetSessionID(ctx, raw.SessionID, session.ResetUserInfo())
		if hadPrev {
			c.sessions.SetHistory(ctx, nil)
		}
	case hadPrev:
		c.sessions.Touch(ctx)
	}

	if raw.UserInfo != nil && !raw.UserInfo.Equal(persisted) {
		c.sessions.SetUserInfo(ctx, raw.UserInfo)
	}

	answer := &Answer{
		Answer:           raw.Response,
		SessionID:        raw.SessionID,
		RelevantPages:    raw.RelevantPages,
		RequiresUserInfo: raw.RequiresUserInfo,
		MissingFields:    raw.MissingFields,
		UserInfo:         raw.UserInfo,
		SourceType:       raw.SourceType,
		SourceDocument:   raw.SourceDocument,
		HasContactForm:   raw.HasContactForm,
	}
	if answer.SessionID == "" {
		answer.SessionID = prevID
	}
	return answer, nil
}

// resolveUserInfo picks the contact details to attach to the request: a
// fresh profile fetch when an auth token is present, falling back to the
// persisted details on any failure or for anonymous actors.
func (c *Client) resolveUserInfo(ctx context.Context, persisted *session.UserInfo) *session.UserInfo {
	if c.profile == nil || c.token(ctx) == "" {
		return persisted
	}
	fresh, err := c.profile.Profile(ctx)
	if err != nil || fresh == nil {
		if err != nil {
			log.Debug().Err(err).Str("component", "chatapi").Msg("profile fetch failed, using persisted user info")
		}
		return persisted
	}
	return fresh
}

func (c *Client) token(ctx context.Context) string {
	if c.tokenFn != nil {
		return c.tokenFn(ctx)
	}
	return c.sessions.Token(ctx)
}
