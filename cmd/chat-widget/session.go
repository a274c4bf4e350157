package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset the locally stored session",
	}
	cmd.AddCommand(newSessionShowCommand())
	cmd.AddCommand(newSessionClearCommand())
	return cmd
}

// sessionView is the human-facing shape of a session record.
type sessionView struct {
	ID        string         `yaml:"id"`
	ExpiresAt string         `yaml:"expires_at,omitempty"`
	VendorID  string         `yaml:"vendor_id,omitempty"`
	UserInfo  map[string]any `yaml:"user_info,omitempty"`
	Messages  int            `yaml:"messages"`
}

func newSessionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active session as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, sessions, err := newEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			rec, ok := sessions.Stored(ctx)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no active session")
				return nil
			}

			view := sessionView{
				ID:       rec.ID,
				VendorID: rec.VendorID,
				Messages: len(rec.ChatHistory),
			}
			if rec.Exp != nil {
				view.ExpiresAt = time.UnixMilli(*rec.Exp).Format(time.RFC3339)
			}
			if rec.UserInfo != nil {
				view.UserInfo = map[string]any{}
				if rec.UserInfo.Name != "" {
					view.UserInfo["name"] = rec.UserInfo.Name
				}
				if rec.UserInfo.Email != "" {
					view.UserInfo["email"] = rec.UserInfo.Email
				}
				if rec.UserInfo.Phone != "" {
					view.UserInfo["phone"] = rec.UserInfo.Phone
				}
				for k, v := range rec.UserInfo.Extra {
					view.UserInfo[k] = v
				}
			}

			out, err := yaml.Marshal(view)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newSessionClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored session and pending history",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, sessions, err := newEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sessions.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
			return nil
		},
	}
}
