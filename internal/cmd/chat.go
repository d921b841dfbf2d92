package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tehqua/Vitalis/internal/config"
	"github.com/tehqua/Vitalis/internal/memory"
	"github.com/tehqua/Vitalis/internal/workflow"
)

var (
	chatPatientID string
	chatSessionID string
	chatAudioRef  string
	chatImageRef  string
	chatJSON      bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Run a single conversation turn",
	Long: `Runs one turn through the assistant and prints the response.

The message may be omitted when sending only an audio or image reference.
Pass --session to continue an existing conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatPatientID, "patient", "", "patient identifier (required)")
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session to continue (default: new session)")
	chatCmd.Flags().StringVar(&chatAudioRef, "audio", "", "audio reference to transcribe")
	chatCmd.Flags().StringVar(&chatImageRef, "image", "", "skin image reference to classify")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "print the full turn result as JSON")
	_ = chatCmd.MarkFlagRequired("patient")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "chat")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	var store *memory.Store
	store, err = memory.NewStore(cfg.SessionDBPath(), cfg.MaxConvLen)
	if err != nil {
		log.Warn().Err(err).Msg("session store unavailable")
		store = nil
	} else {
		defer store.Close()
	}

	engine, err := buildEngine(cfg, store)
	if err != nil {
		return err
	}

	req := &workflow.TurnRequest{
		PatientID: chatPatientID,
		SessionID: chatSessionID,
		AudioRef:  chatAudioRef,
		ImageRef:  chatImageRef,
	}
	if len(args) > 0 {
		req.Text = args[0]
	}

	res, err := engine.Process(ctx, req)
	if err != nil && res == nil {
		return fmt.Errorf("processing turn: %w", err)
	}
	if err != nil {
		log.Warn().Err(err).Msg("turn completed but memory append failed")
	}

	if chatJSON {
		return json.NewEncoder(os.Stdout).Encode(res)
	}
	fmt.Println(res.Response)
	log.Info().Str("session_id", res.SessionID).
		Str("modality", string(res.Metadata.Modality)).
		Strs("tools_used", res.Metadata.ToolsUsed).
		Msg("turn_completed")
	return nil
}
