package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/calebreed/parley/internal/chat"
	"github.com/calebreed/parley/internal/config"
	"github.com/calebreed/parley/internal/session"
	"github.com/calebreed/parley/internal/storage"
	"github.com/calebreed/parley/internal/storage/sqlite"
	"github.com/calebreed/parley/internal/tools"
)

const promptUser = "\033[36myou>\033[0m "

var (
	functionFlags []string
	resumeID      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive conversation. The model can call any function you
declare; registry-backed functions run automatically, the rest are handed
to you to answer.

Examples:
  parley chat
  parley chat --model gpt-4-0613
  parley chat --profile weather
  parley chat --functions ./get_current_weather.json`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringArrayVar(&functionFlags, "functions", nil, "Function spec JSON files to register")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	var sess *storage.Session
	if resumeID != "" {
		sess, err = store.GetSession(ctx, resumeID)
		if err != nil {
			return err
		}
		if modelFlag != "" {
			sess.Model = modelFlag
		}
		if profileFlag != "" {
			sess.Profile = profileFlag
		}
	} else {
		sess = &storage.Session{
			ID:      uuid.New().String(),
			Status:  storage.StatusActive,
			Model:   modelFlag,
			Profile: profileFlag,
		}
		if err := store.CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
	}

	// Start configured tool servers
	registry := tools.NewRegistry()
	defer registry.Close()

	for name, toolCfg := range cfg.Tools {
		if err := registry.Register(name, toolCfg); err != nil {
			fmt.Printf("Warning: failed to start tool server %s: %v\n", name, err)
		}
	}

	mgr := session.NewManager()
	as, err := mgr.GetOrCreate(ctx, sess, cfg, store, registry)
	if err != nil {
		return err
	}
	conv := as.Session.Conv

	// Extra function specs from the command line
	for _, path := range functionFlags {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading function spec %s: %w", path, err)
		}
		fn, err := chat.ParseFunction(data)
		if err != nil {
			return fmt.Errorf("function spec %s: %w", path, err)
		}
		if err := conv.RegisterFunction(fn); err != nil {
			fmt.Printf("Warning: %s: %v\n", path, err)
		}
	}

	fmt.Printf("Parley - Interactive Chat\n")
	if sess.Profile != "" {
		fmt.Printf("Profile: %s\n", sess.Profile)
	}
	fmt.Printf("Model: %s | Session: %s\n", conv.Model(), sess.ID[:8])
	if n := len(conv.Functions()); n > 0 {
		fmt.Printf("Functions: %d registered (%d from tool servers)\n", n, len(registry.Functions()))
	}
	if resumeID != "" {
		fmt.Printf("Resumed with %d turns\n", conv.Len())
	}
	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptUser,
		HistoryFile:     "/tmp/parley_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Per-request cancellation: Ctrl+C cancels the active request,
	// not the whole app. A second Ctrl+C while idle exits.
	var reqCancel context.CancelFunc
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if reqCancel != nil {
				reqCancel()
			}
		}
	}()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Handle slash commands
		if strings.HasPrefix(input, "/") {
			if handleCommand(input, conv) {
				continue
			}
		}

		// Create a per-request context so Ctrl+C only cancels this request
		reqCtx, cancel := context.WithCancel(context.Background())
		reqCancel = cancel

		answer, err := runExchange(reqCtx, as, registry, rl, input)
		wasInterrupted := reqCtx.Err() != nil
		cancel()
		reqCancel = nil

		// Save what the exchange appended, even on failure
		persistExchange(store, sess, conv, input)

		if err != nil {
			if wasInterrupted {
				fmt.Println("\n(interrupted)")
				continue
			}
			fmt.Printf("\n\033[31merror: %s\033[0m\n\n", err)
			continue
		}

		fmt.Printf("\n\033[32mparley>\033[0m %s\n\n", answer)
	}
}

// runExchange sends the user input and drives the conversation to a text
// answer. Function calls the registry can serve are executed in place;
// the rest are answered at the prompt.
func runExchange(ctx context.Context, as *session.ActiveSession, registry *tools.Registry, rl *readline.Instance, input string) (string, error) {
	outcome, err := as.Session.Complete(ctx, input)

	for rounds := 0; err == nil && outcome.IsFunctionCall(); rounds++ {
		if rounds >= as.MaxRounds {
			return "", fmt.Errorf("function call loop exceeded %d rounds", as.MaxRounds)
		}

		call := outcome.Call
		fmt.Printf("\n  \033[33m⚡ Function: %s(%s)\033[0m\n", call.Name, call.Arguments)

		var result string
		if registry != nil && registry.Has(call.Name) {
			result, err = registry.Call(ctx, call)
			if err != nil {
				// The model sees the failure and can react to it
				result = "error: " + err.Error()
				err = nil
			}
			printResultPreview(result)
		} else {
			result, err = promptResult(rl, call.Name)
			if err != nil {
				return "", err
			}
		}

		if aerr := as.Session.Conv.AppendFunctionResult(call.Name, result); aerr != nil {
			return "", aerr
		}
		outcome, err = as.Session.Continue(ctx)
	}
	if err != nil {
		return "", err
	}
	return outcome.Content, nil
}

// promptResult reads a hand-typed function result.
func promptResult(rl *readline.Instance, name string) (string, error) {
	rl.SetPrompt(fmt.Sprintf("\033[33m%s result>\033[0m ", name))
	defer rl.SetPrompt(promptUser)

	line, err := rl.Readline()
	if err != nil {
		return "", fmt.Errorf("reading function result: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printResultPreview(result string) {
	lines := strings.Split(strings.TrimSpace(result), "\n")
	preview := lines
	if len(preview) > 8 {
		preview = preview[:8]
	}
	for _, line := range preview {
		fmt.Printf("  \033[90m│ %s\033[0m\n", line)
	}
	if len(lines) > 8 {
		fmt.Printf("  \033[90m│ ... (%d more lines)\033[0m\n", len(lines)-8)
	}
	fmt.Println()
}

func persistExchange(store storage.Store, sess *storage.Session, conv *chat.Context, input string) {
	ctx := context.Background()
	if sess.Title == "" {
		sess.Title = input
		if len(sess.Title) > 80 {
			sess.Title = sess.Title[:80] + "..."
		}
		store.UpdateSession(ctx, sess)
	}
	if err := store.SaveTurns(ctx, sess.ID, conv.Turns()); err != nil {
		fmt.Printf("\033[31mwarning: saving session: %v\033[0m\n", err)
	}
}

func handleCommand(input string, conv *chat.Context) bool {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		os.Exit(0)
	case "/reset":
		conv.Reset()
		fmt.Println("Conversation cleared. Functions stay registered.")
		fmt.Println()
	case "/history":
		data, err := json.MarshalIndent(conv.Turns(), "", "  ")
		if err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println(string(data))
		}
		fmt.Println()
	case "/functions":
		fns := conv.Functions()
		if len(fns) == 0 {
			fmt.Println("No functions registered.")
		}
		for _, fn := range fns {
			if fn.Description != "" {
				fmt.Printf("  %s - %s\n", fn.Name, fn.Description)
			} else {
				fmt.Printf("  %s\n", fn.Name)
			}
		}
		fmt.Println()
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help       - Show this help")
		fmt.Println("  /reset      - Clear conversation history")
		fmt.Println("  /history    - Show raw conversation history (JSON)")
		fmt.Println("  /functions  - List registered functions")
		fmt.Println("  /quit       - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return true
}
