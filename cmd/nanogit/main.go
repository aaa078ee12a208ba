// nanogit clones a repository snapshot into a sandboxed content store and
// mirrors it onto a local directory, escalating cross-origin fetches through
// the fetch relay daemon when one is running.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/copywrite-ai/nano-web-git/internal/config"
	"github.com/copywrite-ai/nano-web-git/internal/utils"
	"github.com/copywrite-ai/nano-web-git/internal/version"
)

var (
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "nanogit",
	Short:   "Sandboxed git workspace mirror",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringP("dir", "d", config.DefaultLocalDir, "local destination directory")
	rootCmd.PersistentFlags().StringP("relay", "r", config.DefaultRelayURL, "fetch relay daemon url (empty disables escalation)")

	_ = viper.BindPFlag("local_dir", rootCmd.PersistentFlags().Lookup("dir"))
	_ = viper.BindPFlag("relay_url", rootCmd.PersistentFlags().Lookup("relay"))

	rootCmd.AddCommand(cloneCmd, pullCmd, syncCmd, treeCmd, catCmd, explainCmd)
}

func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	viper.SetEnvPrefix("NANOGIT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// a missing config file just means defaults
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}
	return nil
}

func currentConfig() *config.Config {
	return &config.Config{
		Path:       viper.ConfigFileUsed(),
		LocalDir:   viper.GetString("local_dir"),
		RelayURL:   viper.GetString("relay_url"),
		Origin:     viper.GetString("origin"),
		OpenProxy:  viper.GetString("open_proxy"),
		ExplainURL: viper.GetString("explain_url"),
	}
}

func main() {
	logFile := filepath.Join(filepath.Dir(config.DefaultConfigPath), "nanogit.log")
	_ = utils.EnsureParent(logFile)

	stdoutHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:   slog.LevelInfo,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	})

	var handler slog.Handler = stdoutHandler
	if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = utils.NewMultiLogHandler(stdoutHandler, fileHandler)
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
