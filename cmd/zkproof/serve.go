package zkproof

import (
	"time"

	"github.com/mynextid/zk-callbacks/server"
	"github.com/mynextid/zk-callbacks/server/api"
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	cfg := &server.ServeConfig{}
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bulletin server",
		Long:  `Start the HTTP bulletin server. Users post verified interactions, services post calls on tickets.`,
		Example: `  # Start server on default port
  zkcb serve

  # Start with custom settings
  zkcb serve --host 0.0.0.0 --port 9090 --circuits-dir ./setup

  # Read settings from a file, flags win over the file
  zkcb serve --config bulletin.yaml --log-level debug

  # Production deployment with TLS
  zkcb serve --host 0.0.0.0 --port 443 --enable-tls \
    --cert-file /etc/ssl/cert.pem --key-file /etc/ssl/key.pem

  # Load specific circuits only
  zkcb serve --circuits join,increment`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := server.LoadConfigFile(configFile, cfg, cmd.Flags().Changed); err != nil {
					return err
				}
			}
			return server.Run(cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "YAML file with serve settings, keyed by flag name")

	// Server flags
	cmd.Flags().StringVar(&cfg.Host, "host", "localhost", "Host to bind to")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", 8080, "Port to listen on")

	// Circuit flags
	cmd.Flags().StringVarP(&cfg.CircuitsDir, "circuits-dir", "d", "./setup", "Directory containing compiled circuits")
	cmd.Flags().StringSliceVarP(&cfg.Circuits, "circuits", "c", []string{}, "Specific circuits to load (comma-separated, empty = all)")

	// Performance flags
	cmd.Flags().Int64Var(&cfg.MaxRequestSize, "max-request-size", 1024*1024, "Maximum request body size in bytes")
	cmd.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", 15*time.Second, "HTTP read timeout")
	cmd.Flags().DurationVar(&cfg.WriteTimeout, "write-timeout", 30*time.Second, "HTTP write timeout")
	cmd.Flags().DurationVar(&cfg.IdleTimeout, "idle-timeout", 120*time.Second, "HTTP idle timeout")
	cmd.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	cmd.Flags().DurationVar(&cfg.MaxClockSkew, "max-clock-skew", api.DefaultClockSkew, "Allowed distance between the time of an interaction and the server clock")

	// Security flags
	cmd.Flags().BoolVar(&cfg.EnableCORS, "enable-cors", true, "Enable CORS middleware")
	cmd.Flags().StringSliceVar(&cfg.CorsOrigins, "cors-origins", []string{"*"}, "Allowed CORS origins")

	// Observability flags
	cmd.Flags().BoolVar(&cfg.EnablePprof, "enable-pprof", false, "Enable pprof endpoints (debug only)")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", "text", "Log format (text, json)")

	// TLS flags
	cmd.Flags().BoolVar(&cfg.EnableTLS, "enable-tls", false, "Enable TLS/HTTPS")
	cmd.Flags().StringVar(&cfg.CertFile, "cert-file", "", "TLS certificate file")
	cmd.Flags().StringVar(&cfg.KeyFile, "key-file", "", "TLS private key file")

	return cmd
}
