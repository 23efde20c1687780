package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yamunaarun/narrato-audio-book/internal/server"
)

var (
	serveHost string
	servePort int

	serveCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Serve the library over HTTP",
		Long:    paragraph(fmt.Sprintf("\nServe documents, playback progress and bookmarks over a REST API. Clients authenticate upstream and pass the principal in %s.", keyword("X-User-ID"))),
		Example: paragraph("narrato serve\nnarrato serve --host 0.0.0.0 --port 9090"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildServerConfig(cmd)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			srv := server.New(cfg, a.lib, a.progress, a.bookmarks, a.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			fmt.Printf("Listening on %s\n", keyword(fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)))

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("unable to shut down cleanly: %w", err)
			}
			return <-errCh
		},
	}
)

// buildServerConfig layers environment settings under the config file
// and flags.
func buildServerConfig(cmd *cobra.Command) (server.Config, error) {
	cfg, err := env.ParseAs[server.Config]()
	if err != nil {
		return server.Config{}, fmt.Errorf("error parsing config: %v", err)
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = server.DefaultConfig().AllowedOrigins
	}

	if viper.IsSet("server.host") {
		cfg.Host = viper.GetString("server.host")
	}
	if viper.IsSet("server.port") {
		cfg.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("server.allowed_origins") {
		cfg.AllowedOrigins = viper.GetStringSlice("server.allowed_origins")
	}
	if viper.IsSet("server.shutdown_timeout") {
		cfg.ShutdownTimeout = viper.GetDuration("server.shutdown_timeout")
	}

	if cmd.Flags().Changed("host") {
		cfg.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	if err := cfg.Validate(); err != nil {
		return server.Config{}, err
	}
	return cfg, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "address to bind")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
}
