package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crewsheet/internal/gateway/app"
	"crewsheet/internal/session"
)

func newServeCmd(load loadFunc) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API and event websocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if p := strings.TrimSpace(port); p != "" {
				if !strings.HasPrefix(p, ":") {
					p = ":" + p
				}
				cfg.Port = p
			}
			logger := stderrLogger()

			parser, closeParser, err := newParser(cmd.Context(), cfg.LLM, session.Resolver(cfg.Session, nil), logger)
			if err != nil {
				return err
			}
			defer closeParser()

			a, err := app.New(cfg, parser, logger)
			if err != nil {
				return err
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- a.Start()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			logger.Println("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Shutdown(ctx); err != nil {
				return err
			}
			logger.Println("Server exiting")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen address; overrides PORT")
	return cmd
}
