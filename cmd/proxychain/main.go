package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-proxychain/proxychain/proxy"
	"github.com/go-proxychain/proxychain/version"
)

var flags struct {
	configFile string
	host       string
	port       int
	authRealm  string
	verbose    bool
	logFile    string
	upstream   string
	basicAuth  []string
}

func main() {
	root := &cobra.Command{
		Use:   "proxychain",
		Short: "A programmable HTTP/HTTPS forwarding proxy",
	}
	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy server",
		RunE:  runServe,
	}

	f := cmd.Flags()
	f.StringVar(&flags.configFile, "config", "", "path to a YAML config file")
	f.StringVar(&flags.host, "host", "", "bind address (all interfaces if empty)")
	f.IntVar(&flags.port, "port", 0, "listen port")
	f.StringVar(&flags.authRealm, "auth-realm", "", "Proxy-Authenticate realm")
	f.BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	f.StringVar(&flags.logFile, "log-file", "", "rotate logs to this file instead of stdout")
	f.StringVar(&flags.upstream, "upstream", "", "forward every request through this upstream proxy URL")
	f.StringSliceVar(&flags.basicAuth, "basic-auth", nil, "user:pass pairs required for proxy authentication, repeatable")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	fc, err := loadFileConfig(flags.configFile)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	cfg := proxy.Config{
		Host:      firstNonEmpty(flags.host, fc.Host),
		Port:      firstNonZero(flags.port, fc.Port),
		AuthRealm: firstNonEmpty(flags.authRealm, fc.AuthRealm),
		Verbose:   flags.verbose || fc.Verbose,
	}

	upstream := firstNonEmpty(flags.upstream, fc.Upstream)
	basicAuth := flags.basicAuth
	if len(basicAuth) == 0 {
		basicAuth = fc.BasicAuth
	}
	if len(basicAuth) > 0 || upstream != "" {
		cfg.PrepareRequestFunc = newCredentialStore(basicAuth).prepareRequestFunc(upstream)
	}

	logFile := firstNonEmpty(flags.logFile, fc.LogFile)
	var logWriter io.Writer = os.Stdout
	if logFile != "" {
		logWriter = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		}
	}

	srv := proxy.NewWithLogWriter(cfg, logWriter)
	slog.Info("starting proxychain", "version", version.String())
	return srv.Listen()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
