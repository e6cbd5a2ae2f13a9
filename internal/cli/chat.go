package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/internal/logger"
	"github.com/toolbridge/toolbridge/pkg/chat"
	"github.com/toolbridge/toolbridge/pkg/client"
	"github.com/toolbridge/toolbridge/pkg/planner"
)

var (
	chatServerURL string
	chatKey       string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session against a gateway",
	Long: `Start an interactive chat session. Each line you type runs one turn:
the planner either calls a tool through the gateway or answers directly.
Type "exit" or "quit" to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "http://localhost:8080", "gateway base URL")
	chatCmd.Flags().StringVar(&chatKey, "key", "", "transcript key (default: chat-<timestamp>)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: false,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logg.Close()
	log := logg.GetZerolog()

	ctx := context.Background()

	wire, err := client.New(client.Config{BaseURL: chatServerURL, Logger: log})
	if err != nil {
		return err
	}

	info, err := wire.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	defer wire.Close(context.Background())

	adapter, err := planner.NewAdapter(planner.AdapterConfig{
		Profiles: cfg.AI.Profiles,
		Fallback: planner.NewRuleFallback(),
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to create planner: %w", err)
	}

	store, err := chat.NewTranscriptStore(filepath.Join(cfg.DataDir, "transcripts"))
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}

	key := chatKey
	if key == "" {
		key = fmt.Sprintf("chat-%d", time.Now().Unix())
	}

	loop, err := chat.NewLoop(chat.LoopConfig{
		Planner:    adapter,
		Dispatcher: wire,
		Store:      store,
		Key:        key,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Connected to %s %s (session %s)\n", info.Name, info.Version, wire.SessionID())
	fmt.Println(`Type a message, or "exit" to quit.`)

	history := chat.NewHistory()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		answer, err := loop.Turn(ctx, history, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}

	return scanner.Err()
}
