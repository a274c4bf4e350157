package main

import (
	"context"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bharatgo/chat-widget/pkg/chatapi"
	"github.com/bharatgo/chat-widget/pkg/session"
)

//go:embed static/*
var staticFS embed.FS

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the embeddable widget page and a /chat relay",
		Long: `serve hosts the widget bootstrap script and a small JSON relay so
host pages can embed the chat without talking to the answering service
directly. POST /chat forwards a question through the local session
manager; GET /embed.js and /embed.html serve the widget assets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, sessions, err := newEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			client, err := newChatClient(cfg, sessions)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			return runServe(cmd.Context(), cfg, sessions, client)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

// relayRequest is what the embedded page sends to the local relay.
type relayRequest struct {
	Question string `json:"question"`
}

// relayResponse mirrors the fields the widget UI consumes.
type relayResponse struct {
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

func runServe(ctx context.Context, cfg Config, sessions *session.Manager, client *chatapi.Client) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return errors.Wrap(err, "embedded static assets")
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		handleChat(w, r, sessions, client)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("component", "serve").Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func handleChat(w http.ResponseWriter, r *http.Request, sessions *session.Manager, client *chatapi.Client) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req relayRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		http.Error(w, "empty question", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	sessions.AppendMessage(ctx, session.Message{
		ID:      uuid.NewString(),
		Role:    session.RoleUser,
		Content: question,
	})

	answer, err := client.Ask(ctx, question)
	if err != nil {
		var statusErr *chatapi.StatusError
		if errors.As(err, &statusErr) {
			log.Warn().Int("status", statusErr.Status).Str("component", "serve").Msg("upstream rejected question")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		log.Error().Err(err).Str("component", "serve").Msg("relay failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sessions.AppendMessage(ctx, session.Message{
		ID:      uuid.NewString(),
		Role:    session.RoleAssistant,
		Content: answer.Answer,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(relayResponse{
		Response:         answer.Answer,
		SessionID:        answer.SessionID,
		RelevantPages:    answer.RelevantPages,
		RequiresUserInfo: answer.RequiresUserInfo,
		MissingFields:    answer.MissingFields,
		UserInfo:         answer.UserInfo,
		SourceType:       answer.SourceType,
		SourceDocument:   answer.SourceDocument,
		HasContactForm:   answer.HasContactForm,
	})
}
