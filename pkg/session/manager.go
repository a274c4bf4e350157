package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bharatgo/chat-widget/pkg/kv"
)

// Storage keys. The values match what earlier widget builds wrote, so a new
// build picks up existing state.
const (
	DefaultSessionKey = "bharatgo-seller-session-id"
	DefaultPendingKey = "bharatgo-seller-history:pending"
	DefaultVendorKey  = "bharatgo-seller-vendor-id"
	DefaultTokenKey   = "token"
)

// DefaultTTL is the inactivity window after which a session record is
// discarded. Every successful exchange refreshes it.
const DefaultTTL = 15 * time.Minute

// DefaultHistoryLimit bounds the persisted chat history; oldest entries are
// dropped first.
const DefaultHistoryLimit = 50

// Manager owns all session state transitions. Every operation is
// best-effort with respect to storage: reads degrade to "no session" and
// writes to no-ops, so a broken store costs persistence, never crashes.
// The manager provides no mutual exclusion across concurrent calls; the
// caller serializes submissions (last write wins otherwise).
type Manager struct {
	store        kv.Store
	now          func() time.Time
	tokenFn      func(ctx context.Context) string
	sessionKey   string
	pendingKey   string
	vendorKey    string
	tokenKey     string
	ttl          time.Duration
	historyLimit int
}

type Option func(*Manager)

// WithNow replaces the clock, for expiry tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTokenFunc replaces where the external auth token comes from. The
// default reads the token key from the same store the host app writes.
func WithTokenFunc(fn func(ctx context.Context) string) Option {
	return func(m *Manager) { m.tokenFn = fn }
}

// WithKeys overrides the three storage keys, for hosts embedding several
// widgets against one store.
func WithKeys(sessionKey, pendingKey, vendorKey string) Option {
	return func(m *Manager) {
		if sessionKey != "" {
			m.sessionKey = sessionKey
		}
		if pendingKey != "" {
			m.pendingKey = pendingKey
		}
		if vendorKey != "" {
			m.vendorKey = vendorKey
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithHistoryLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.historyLimit = limit
		}
	}
}

func NewManager(store kv.Store, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		now:          time.Now,
		sessionKey:   DefaultSessionKey,
		pendingKey:   DefaultPendingKey,
		vendorKey:    DefaultVendorKey,
		tokenKey:     DefaultTokenKey,
		ttl:          DefaultTTL,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stored returns the validated session record, running the vendor-change
// check first and enforcing lazy expiry. A record that fails validation is
// deleted before "no session" is reported, so callers never observe stale
// or cross-vendor state.
func (m *Manager) Stored(ctx context.Context) (Record, bool) {
	m.CheckVendorChanged(ctx)

	rec, ok := m.readRaw(ctx)
	if !ok {
		return Record{}, false
	}
	if rec.Exp != nil && *rec.Exp <= m.now().UnixMilli() {
		if err := m.store.Delete(ctx, m.sessionKey); err != nil {
			m.debugf(err, "expired record delete failed")
		}
		return Record{}, false
	}
	if current := m.vendorID(ctx); current != "" && rec.VendorID != "" && rec.VendorID != current {
		m.Clear(ctx)
		return Record{}, false
	}
	return rec, true
}

// SessionID returns the active session id, if any.
func (m *Manager) SessionID(ctx context.Context) (string, bool) {
	rec, ok := m.Stored(ctx)
	if !ok || rec.ID == "" {
		return "", false
	}
	return rec.ID, true
}

// SetSessionOption modifies SetSessionID behavior.
type SetSessionOption func(*setSessionConfig)

type setSessionConfig struct {
	resetUserInfo bool
}

// ResetUserInfo drops the previously stored contact details. Used when the
// server rotates to a genuinely new session.
func ResetUserInfo() SetSessionOption {
	return func(c *setSessionConfig) { c.resetUserInfo = true }
}

// SetSessionID records a (possibly new) server-issued session id. The new
// record inherits the previous contact details unless reset was requested,
// and drains any pending history buffered before the session existed.
func (m *Manager) SetSessionID(ctx context.Context, id string, opts ...SetSessionOption) {
	if id == "" {
		return
	}
	cfg := setSessionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	exp := m.now().Add(m.ttl).UnixMilli()
	prev, _ := m.Stored(ctx)
	pending := m.readPending(ctx)
	vendor := m.vendorID(ctx)

	next := Record{ID: id, Exp: &exp, VendorID: vendor}
	if !cfg.resetUserInfo {
		next.UserInfo = prev.UserInfo
	}
	if len(pending) > 0 {
		next.ChatHistory = pending
	} else {
		next.ChatHistory = prev.ChatHistory
	}

	m.persist(ctx, next)
	if len(pending) > 0 {
		if err := m.store.Delete(ctx, m.pendingKey); err != nil {
			m.debugf(err, "pending history delete failed")
		}
	}
	if vendor != "" {
		if err := m.store.Set(ctx, m.vendorKey, vendor); err != nil {
			m.debugf(err, "vendor marker write failed")
		}
	}
}

// SetUserInfo merges contact details into the active session. A changed
// email is a vendor switch: the old session and pending buffer are cleared
// before the new record is written, so anonymous history never crosses into
// the new identity. No-op without an active session.
func (m *Manager) SetUserInfo(ctx context.Context, info *UserInfo) {
	prev, ok := m.Stored(ctx)
	if !ok || prev.ID == "" {
		return
	}

	vendor := prev.VendorID
	if info != nil && info.Email != "" {
		marker, found, err := m.store.Get(ctx, m.vendorKey)
		if err != nil {
			m.debugf(err, "vendor marker read failed")
			found = false
		}
		if found && marker != info.Email {
			m.Clear(ctx)
		}
		if err := m.store.Set(ctx, m.vendorKey, info.Email); err != nil {
			m.debugf(err, "vendor marker write failed")
		}
		vendor = info.Email
	}

	next := prev
	next.UserInfo = info.Clone()
	next.VendorID = vendor
	m.persist(ctx, next)
}

// Touch extends the active session's expiry without altering other fields.
// No-op without an active session.
func (m *Manager) Touch(ctx context.Context) {
	prev, ok := m.Stored(ctx)
	if !ok || prev.ID == "" {
		return
	}
	exp := m.now().Add(m.ttl).UnixMilli()
	prev.Exp = &exp
	m.persist(ctx, prev)
}

// Clear deletes the session record and the pending history buffer.
func (m *Manager) Clear(ctx context.Context) {
	if err := m.store.Delete(ctx, m.sessionKey); err != nil {
		m.debugf(err, "session delete failed")
	}
	if err := m.store.Delete(ctx, m.pendingKey); err != nil {
		m.debugf(err, "pending history delete failed")
	}
}

// AppendMessage adds a message to the active session's history, or to the
// pending buffer while no session id exists yet. Both are capped to the
// most recent entries.
func (m *Manager) AppendMessage(ctx context.Context, msg Message) {
	prev, ok := m.Stored(ctx)
	if !ok || prev.ID == "" {
		pending := m.readPending(ctx)
		m.writePending(ctx, capTail(append(pending, msg), m.historyLimit))
		return
	}
	prev.ChatHistory = capTail(append(prev.ChatHistory, msg), m.historyLimit)
	m.persist(ctx, prev)
}

// History returns the active session's chat history, or the pending buffer
// when no session exists. Never nil.
func (m *Manager) History(ctx context.Context) []Message {
	rec, ok := m.Stored(ctx)
	if ok && rec.ID != "" {
		if rec.ChatHistory == nil {
			return []Message{}
		}
		return rec.ChatHistory
	}
	pending := m.readPending(ctx)
	if pending == nil {
		return []Message{}
	}
	return pending
}

// SetHistory replaces the stored history wholesale. With an active session
// the record is rewritten; otherwise the pending buffer is.
func (m *Manager) SetHistory(ctx context.Context, msgs []Message) {
	msgs = capTail(msgs, m.historyLimit)
	prev, ok := m.Stored(ctx)
	if !ok || prev.ID == "" {
		m.writePending(ctx, msgs)
		return
	}
	prev.ChatHistory = msgs
	m.persist(ctx, prev)
}

// UserInfo returns the persisted contact details of the active session.
func (m *Manager) UserInfo(ctx context.Context) *UserInfo {
	rec, ok := m.Stored(ctx)
	if !ok {
		return nil
	}
	return rec.UserInfo.Clone()
}

func (m *Manager) readRaw(ctx context.Context) (Record, bool) {
	raw, ok, err := m.store.Get(ctx, m.sessionKey)
	if err != nil {
		m.debugf(err, "session read failed")
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}
	return decodeRecord(raw)
}

func (m *Manager) persist(ctx context.Context, rec Record) {
	encoded, err := encodeRecord(rec)
	if err != nil {
		m.debugf(err, "session encode failed")
		return
	}
	if err := m.store.Set(ctx, m.sessionKey, encoded); err != nil {
		m.debugf(err, "session write failed")
	}
}

func (m *Manager) readPending(ctx context.Context) []Message {
	raw, ok, err := m.store.Get(ctx, m.pendingKey)
	if err != nil {
		m.debugf(err, "pending history read failed")
		return nil
	}
	if !ok {
		return nil
	}
	return decodeMessages(raw)
}

func (m *Manager) writePending(ctx context.Context, msgs []Message) {
	encoded, err := encodeMessages(msgs)
	if err != nil {
		m.debugf(err, "pending history encode failed")
		return
	}
	if err := m.store.Set(ctx, m.pendingKey, encoded); err != nil {
		m.debugf(err, "pending history write failed")
	}
}

// Token exposes the external auth token the manager sees, for collaborators
// that need to decide whether an authenticated profile fetch is possible.
func (m *Manager) Token(ctx context.Context) string {
	return m.token(ctx)
}

func (m *Manager) token(ctx context.Context) string {
	if m.tokenFn != nil {
		return m.tokenFn(ctx)
	}
	token, ok, err := m.store.Get(ctx, m.tokenKey)
	if err != nil {
		m.debugf(err, "token read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

func (m *Manager) debugf(err error, msg string) {
	log.Debug().Err(err).Str("component", "session").Msg(msg)
}
