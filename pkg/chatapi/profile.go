package chatapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/bharatgo/chat-widget/pkg/session"
)

// ProfileSource serves fresh contact details for the authenticated actor.
// Implementations return (nil, nil) when no profile is available.
type ProfileSource interface {
	Profile(ctx context.Context) (*session.UserInfo, error)
}

// ProfileFunc adapts a function to ProfileSource.
type ProfileFunc func(ctx context.Context) (*session.UserInfo, error)

func (f ProfileFunc) Profile(ctx context.Context) (*session.UserInfo, error) {
	return f(ctx)
}

// dashboardReply is the vendor dashboard payload; only the contact fields
// matter here.
type dashboardReply struct {
	VendorName  string `json:"vendor_name"`
	VendorEmail string `json:"vendor_email"`
	VendorPhone string `json:"vendor_phone"`
}

// HTTPProfileSource fetches contact details from the vendor dashboard
// endpoint with a bearer token.
type HTTPProfileSource struct {
	url     string
	http    *http.Client
	tokenFn func(ctx context.Context) string
}

var _ ProfileSource = &HTTPProfileSource{}

func NewHTTPProfileSource(url string, tokenFn func(ctx context.Context) string, opts ...ProfileOption) (*HTTPProfileSource, error) {
	if url == "" {
		return nil, errors.New("chatapi: empty profile url")
	}
	if tokenFn == nil {
		return nil, errors.New("chatapi: nil token func")
	}
	s := &HTTPProfileSource{url: url, http: http.DefaultClient, tokenFn: tokenFn}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type ProfileOption func(*HTTPProfileSource)

func WithProfileHTTPClient(hc *http.Client) ProfileOption {
	return func(s *HTTPProfileSource) {
		if hc != nil {
			s.http = hc
		}
	}
}

func (s *HTTPProfileSource) Profile(ctx context.Context) (*session.UserInfo, error) {
	if s == nil {
		return nil, errors.New("chatapi: nil profile source")
	}
	token := s.tokenFn(ctx)
	if token == "" {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "chatapi: build profile request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "chatapi: fetch profile")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Errorf("chatapi: profile request failed with status %d", resp.StatusCode)
	}

	var reply dashboardReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, errors.Wrap(err, "chatapi: decode profile")
	}
	return &session.UserInfo{
		Name:  reply.VendorName,
		Email: reply.VendorEmail,
		Phone: reply.VendorPhone,
	}, nil
}
