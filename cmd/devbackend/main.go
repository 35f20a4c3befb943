// Command devbackend serves a scripted assistant backend for trying the chat
// client without the real service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/funda-chat/internal/backendtest"
)

func main() {
	var (
		addr  string
		delay time.Duration
	)

	rootCmd := &cobra.Command{
		Use:          "devbackend",
		Short:        "Serve a scripted assistant backend that echoes each message",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := &http.Server{
				Addr:              addr,
				Handler:           backendtest.NewHandler(backendtest.Script{Respond: echo(delay)}),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}
			log.Info().Str("addr", addr).Msg("dev backend listening")
			return runServer(cmd.Context(), srv)
		},
	}
	rootCmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	rootCmd.Flags().DurationVar(&delay, "delay", 80*time.Millisecond, "pause between streamed fragments")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// echo streams the reply word by word. Every other fragment resends the
// whole answer so far, the way some backends do.
func echo(delay time.Duration) func(string) backendtest.Reply {
	return func(message string) backendtest.Reply {
		answer := fmt.Sprintf("You said: %s", message)
		words := strings.SplitAfter(answer, " ")

		var (
			deltas []string
			sofar  string
		)
		for i, w := range words {
			sofar += w
			if i%2 == 1 {
				deltas = append(deltas, sofar)
			} else {
				deltas = append(deltas, w)
			}
		}

		reply := backendtest.Stream(answer, deltas...)
		reply.Delay = delay
		return reply
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
