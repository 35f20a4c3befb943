package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/funda-chat/internal/config"
	"github.com/zhouzirui/funda-chat/internal/service/chat"
	"github.com/zhouzirui/funda-chat/internal/service/transport"
	"github.com/zhouzirui/funda-chat/internal/ui"
)

type options struct {
	name       string
	baseURL    string
	configPath string
	noStream   bool
	logLevel   string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the Funda assistant from the terminal",
		Long: `chat opens a session with the assistant backend and streams its
answers into the terminal as they arrive.

Type a message to send it. Commands:
  /like <n>     toggle a like on answer number n
  /dislike <n>  toggle a dislike on answer number n
  /history      print the whole conversation again
  /quit         leave`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.name, "name", "n", "", "display name (prompted for when empty)")
	rootCmd.Flags().StringVar(&opts.baseURL, "base-url", "", "assistant backend URL (overrides CHAT_BASE_URL)")
	rootCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "wait for the whole answer instead of streaming")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// .env 不存在时只使用系统环境变量
	envErr := godotenv.Load()

	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		cfg.Backend.BaseURL = opts.baseURL
		if err := cfg.Backend.Validate(); err != nil {
			return err
		}
	}
	if opts.noStream {
		cfg.Backend.Stream = false
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := setupLogging(cfg.Log.Level); err != nil {
		return err
	}
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using process environment")
	}

	in := bufio.NewReader(os.Stdin)
	name := strings.TrimSpace(opts.name)
	for name == "" {
		fmt.Fprint(os.Stdout, "Your name: ")
		line, err := in.ReadString('\n')
		name = strings.TrimSpace(line)
		if err != nil && name == "" {
			return errors.New("a display name is required")
		}
	}

	renderer := ui.New(os.Stdout, name, cfg.UI.AssistantName)
	ctrl, err := chat.NewController(
		transport.New(cfg.Backend),
		name,
		chat.WithAssistantName(cfg.UI.AssistantName),
		chat.WithObserver(renderer.Observe),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	repl := &REPL{
		In:       in,
		Out:      renderer,
		Ctrl:     ctrl,
		Stream:   cfg.Backend.Stream,
		Prompt:   isatty.IsTerminal(os.Stdin.Fd()),
		PromptTo: os.Stdout,
	}
	return repl.Run(ctx)
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return errors.Wrapf(err, "invalid LOG_LEVEL %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	return nil
}
