package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/tehqua/Vitalis/internal/config"
	"github.com/tehqua/Vitalis/internal/memory"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE:  sessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionsShow,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionsClear,
}

func init() {
	sessionsListCmd.Flags().BoolVar(&sessionsJSON, "json", false, "output as JSON")
	sessionsShowCmd.Flags().BoolVar(&sessionsJSON, "json", false, "output as JSON")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openSessionStore() (*memory.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := memory.NewStore(cfg.SessionDBPath(), cfg.MaxConvLen)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return store, nil
}

func sessionsList(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "sessions.list")
	defer span.End()

	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if sessionsJSON {
		return json.NewEncoder(os.Stdout).Encode(sessions)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  patient=%s  messages=%d  last_active=%s\n",
			s.ID, s.PatientID, s.Messages, s.LastActive.Format(time.RFC3339))
	}
	return nil
}

func sessionsShow(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "sessions.show")
	defer span.End()

	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	msgs, err := store.Messages(ctx, args[0])
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}

	if sessionsJSON {
		return json.NewEncoder(os.Stdout).Encode(msgs)
	}
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return nil
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}
	return nil
}

func sessionsClear(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "sessions.clear")
	defer span.End()

	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(ctx, args[0]); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	fmt.Printf("Session %s cleared.\n", args[0])
	return nil
}
