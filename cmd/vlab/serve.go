package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/vlab/internal/mcptools"
	"github.com/dusk-indust/vlab/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg)
			client, configured := a.completionClient(cfg)
			if !configured {
				logger.Warn("no completion API key configured; analyses will fail")
			}
			_, svc := wire(client, cfg, logger)

			srv := &http.Server{
				Addr: cfg.Addr,
				Handler: server.New(server.Config{
					Service:              svc,
					Logger:               logger,
					AllowedOrigins:       cfg.AllowedOrigins,
					CompletionConfigured: configured,
					Version:              version,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("listening", "addr", cfg.Addr, "model", cfg.Model)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				logger.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from vlab.yml or 127.0.0.1:8000)")
	cmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API")
	cmd.Flags().Int("min-brief-chars", 0, "minimum non-whitespace characters in a brief")
	_ = a.v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = a.v.BindPFlag("allowed-origins", cmd.Flags().Lookup("allowed-origins"))
	_ = a.v.BindPFlag("min-brief-chars", cmd.Flags().Lookup("min-brief-chars"))
	return cmd
}

func (a *app) mcpCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the lab tools over MCP (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.settings()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr.
			logger := newLogger(os.Stderr, cfg)
			client, configured := a.completionClient(cfg)
			if !configured {
				logger.Warn("no completion API key configured; analyses will fail")
			}
			_, svc := wire(client, cfg, logger)
			srv := mcptools.NewLabMCPServer(mcptools.NewLabService(svc), version)

			if httpAddr != "" {
				logger.Info("serving MCP over HTTP", "addr", httpAddr)
				return mcptools.RunHTTP(cmd.Context(), srv, httpAddr)
			}
			return mcptools.RunStdio(cmd.Context(), srv)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
