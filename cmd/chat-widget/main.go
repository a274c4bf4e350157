package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bharatgo/chat-widget/pkg/chatapi"
	"github.com/bharatgo/chat-widget/pkg/kv"
	"github.com/bharatgo/chat-widget/pkg/session"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "chat-widget",
	Short: "Embeddable seller-support chat client",
	Long: `chat-widget talks to the BharatGo answering service and manages the
local session state an embedded widget would keep: session id with a
15-minute sliding expiry, chat history, vendor identity tracking, and a
pending-message buffer for history recorded before a session exists.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel)
	},
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return nil
}

// newEnvironment opens the configured store and wires the session manager
// on top of it. The caller closes the returned store.
func newEnvironment() (Config, kv.Store, *session.Manager, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return Config{}, nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return Config{}, nil, nil, err
	}
	return cfg, store, session.NewManager(store), nil
}

// newChatClient wires the answering-service client, with a profile source
// when one is configured.
func newChatClient(cfg Config, sessions *session.Manager) (*chatapi.Client, error) {
	var opts []chatapi.ClientOption
	if cfg.ProfileURL != "" {
		src, err := chatapi.NewHTTPProfileSource(cfg.ProfileURL, sessions.Token)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chatapi.WithProfileSource(src))
	}
	return chatapi.NewClient(cfg.APIURL, sessions, opts...)
}

func main() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newSessionCommand())
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
