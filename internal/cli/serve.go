package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/blogcomments/internal/config"
	"github.com/evcraddock/blogcomments/internal/logging"
	"github.com/evcraddock/blogcomments/internal/upload"
	"github.com/evcraddock/blogcomments/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the comment server",
		Long:  "Start the HTTP server: the comment API, the upload target and the blog page with its comment widget.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile, serveOverrides(cmd, port))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides BLOGC_PORT)")
	cmd.Flags().StringVar(&envFile, "config", ".env", "dotenv file with BLOGC_* settings")

	return cmd
}

// serveOverrides collects the flags that win over the dotenv file and the
// environment. They go through config.Load so the derived defaults see them.
func serveOverrides(cmd *cobra.Command, port int) map[string]interface{} {
	overrides := make(map[string]interface{})
	if cmd.Flags().Changed("port") {
		overrides["port"] = port
	}
	if flagDB != "" {
		overrides["db_path"] = flagDB
	}
	return overrides
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Setup(cfg.DevMode)

	database, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeDB(database)

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	tokens, err := newTokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := tokens.(interface{ Close() error }); ok {
		defer func() {
			if cerr := closer.Close(); cerr != nil {
				slog.Warn("closing token store", "error", cerr)
			}
		}()
	}

	srv, err := web.NewServer(database, web.Options{
		Limits:    cfg.Limits(),
		BaseURL:   cfg.BaseURL,
		UploadTTL: cfg.UploadTTL,
		Blobs:     blobs,
		Tokens:    tokens,
	})
	if err != nil {
		return err
	}
	// The widget calls the API on this process even when base_url names a proxy.
	srv.SetWidgetBaseURL(fmt.Sprintf("http://127.0.0.1:%d", cfg.Port))

	slog.Info("configuration loaded",
		"db", cfg.DBPath, "blob_backend", cfg.BlobBackend, "token_backend", cfg.TokenBackend)
	return srv.ListenAndServe(ctx, cfg.Port)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (upload.Store, error) {
	switch cfg.BlobBackend {
	case config.BackendMinio:
		return upload.NewMinioStore(ctx, cfg.Minio())
	default:
		return upload.NewDiskStore(cfg.BlobDir)
	}
}

func newTokenStore(ctx context.Context, cfg *config.Config) (upload.TokenStore, error) {
	switch cfg.TokenBackend {
	case config.BackendRedis:
		return upload.NewRedisTokens(ctx, cfg.RedisAddr)
	default:
		// nil selects the SQLite store on the server's database.
		return nil, nil
	}
}
