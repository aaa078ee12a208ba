// fetchrelayd is the privileged end of the relay chain: a small loopback
// daemon that performs network requests on behalf of the sandboxed worker,
// outside its origin restrictions.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/copywrite-ai/nano-web-git/internal/relay"
	"github.com/copywrite-ai/nano-web-git/internal/version"
	"github.com/copywrite-ai/nano-web-git/internal/wire"
)

const shutdownGrace = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:     "fetchrelayd",
	Short:   "Privileged fetch relay daemon for nanogit",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run(cmd.Context(), viper.GetString("addr"))
	},
}

func init() {
	rootCmd.Flags().StringP("addr", "a", "localhost:7478", "listen address")
	_ = viper.BindPFlag("addr", rootCmd.Flags().Lookup("addr"))
	viper.SetEnvPrefix("FETCHRELAY")
	viper.AutomaticEnv()
}

func run(ctx context.Context, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	fetcher := relay.NewFetcher()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
	})

	router.GET("/relay", func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("relay accept failed", "error", err)
			return
		}

		socket := relay.NewSocket(ctx, conn, wire.EncodingMsgPack)
		slog.Info("relay client connected", "remote", c.Request.RemoteAddr)
		fetcher.ServeSocket(ctx, socket)
		slog.Info("relay client disconnected", "remote", c.Request.RemoteAddr)
	})

	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("fetchrelayd listening", "addr", addr, "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	_ = godotenv.Load()

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:   slog.LevelDebug,
		NoColor: !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
