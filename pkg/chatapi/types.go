// Package chatapi implements the question/answer exchange with the remote
// answering service. One POST per Ask, no retries; session rotation, TTL
// refresh, and auth-failure cleanup are coordinated with the session
// manager so the caller only ever sees the normalized answer or an error.
package chatapi

import (
	"fmt"

	"github.com/bharatgo/chat-widget/pkg/session"
)

// askRequest is the wire request. Optional fields are omitted entirely when
// absent; the service treats an empty session_id as a malformed session.
type askRequest struct {
	Question  string            `json:"question"`
	SessionID string            `json:"session_id,omitempty"`
	UserInfo  *session.UserInfo `json:"user_info,omitempty"`
}

// askResponse is the wire response.
type askResponse struct {
	Response         string            `json:"response"`
	SessionID        string            `json:"session_id,omitempty"`
	RelevantPages    []string          `json:"relevant_pages,omitempty"`
	RequiresUserInfo bool              `json:"requires_user_info,omitempty"`
	MissingFields    []string          `json:"missing_fields,omitempty"`
	UserInfo         *session.UserInfo `json:"user_info,omitempty"`
	SourceType       string            `json:"source_type,omitempty"`
	SourceDocument   string            `json:"source_document,omitempty"`
	HasContactForm   bool              `json:"has_contact_form,omitempty"`
}

// Answer is the normalized result of one successful exchange.
// RequiresUserInfo/MissingFields relay the server's request for contact
// details; when and how to show a capture form is the caller's decision.
type Answer struct {
	Answer           string
	SessionID        string
	RelevantPages    []string
	RequiresUserInfo bool
	MissingFields    []string
	UserInfo         *session.UserInfo
	SourceType       string
	SourceDocument   string
	HasContactForm   bool
}

// StatusLoginTimeout is the non-standard "session expired server-side"
// status some gateways send instead of 401.
const StatusLoginTimeout = 440

// StatusError is a non-2xx reply from the answering service.
type StatusError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("chat request failed: %d %s: %s", e.Status, e.StatusText, e.Body)
	}
	return fmt.Sprintf("chat request failed: %d %s", e.Status, e.StatusText)
}
