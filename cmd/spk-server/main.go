// Command spk-server runs the network server (spec §4.5, C5): the gRPC
// tag/database/payload/metadata services and the HTTP payload endpoint,
// fronting a content-addressed store via the repo package. Grounded on the
// teacher's cmd/registry, trimmed of image-registry-specific concerns
// (auth, cloud storage drivers, bugsnag/newrelic reporting — see
// DESIGN.md) and rebuilt around github.com/spf13/cobra the way
// registry/registry.go's ServeCmd does.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	logstash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spkrepo/spk/configuration"
	"github.com/spkrepo/spk/internal/dcontext"
	"github.com/spkrepo/spk/repo"
	"github.com/spkrepo/spk/server"
	"github.com/spkrepo/spk/server/rpc"
	"github.com/spkrepo/spk/storage/cas/memcas"
	"github.com/spkrepo/spk/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spk-server",
		Short: "spk-server stores and serves spk packages",
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "serve runs spk-server against the configured CAS backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := resolveConfiguration(args[0])
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		ctx := configureLogging(dcontext.WithVersion(dcontext.Background(), version.Version()), config)

		store, err := openCAS(config.CAS)
		if err != nil {
			return fmt.Errorf("error opening CAS backend %q: %w", config.CAS.Address, err)
		}

		// Opened only to register store's address in the process-wide
		// cache registry; repo.Open performs no I/O against the backend
		// and writes no metadata. The network server
		// (server/rpc, server/httpapi) wraps store directly per spec §1 —
		// C4's cache and façade are exercised by repo-aware clients
		// speaking the gRPC services, not by this process itself.
		_ = repo.Open(store)

		provider := rpc.NewMetadataProvider(store, version.Version(), repo.MetadataTagPath, repo.ReadRepositoryVersion)
		srv := server.New(config, store, provider)

		dcontext.GetLogger(ctx).Infof("spk-server %s listening (rpc=%s http=%s)", version.Version(), config.RPC.Addr, config.HTTP.Addr)
		return srv.ListenAndServe(ctx)
	},
}

// openCAS constructs the cas.Store backing this process. Only the
// in-memory fake is wired here since no real CAS backend is implemented by
// this module (spec §1 explicitly treats the CAS as an external
// collaborator); a real deployment replaces this with a backend dial.
func openCAS(cfg configuration.CAS) (*memcas.Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("cas.address must be set")
	}
	return memcas.New(cfg.Address), nil
}

func resolveConfiguration(path string) (*configuration.Configuration, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return config, nil
}

// configureLogging sets the standard logger's level and formatter from the
// configuration and returns a context carrying a logger with config.Log.Fields
// attached, mirroring the teacher's registry.configureLogging.
func configureLogging(ctx context.Context, config *configuration.Configuration) context.Context {
	logrus.SetLevel(logLevel(config.Log.Level))

	formatter := config.Log.Formatter
	if formatter == "" {
		formatter = "text"
	}

	switch formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   time.RFC3339Nano,
			DisableHTMLEscape: true,
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "logstash":
		logrus.SetFormatter(&logstash.LogstashFormatter{
			Formatter: &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano},
		})
	default:
		logrus.Warnf("unsupported logging formatter %q, using \"text\"", formatter)
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if len(config.Log.Fields) > 0 {
		var fields []interface{}
		ctx = dcontext.WithValues(ctx, config.Log.Fields)
		for k := range config.Log.Fields {
			fields = append(fields, k)
		}
		ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx, fields...))
	}

	return ctx
}

func logLevel(level configuration.Loglevel) logrus.Level {
	l, err := logrus.ParseLevel(string(level))
	if err != nil {
		logrus.Warnf("error parsing level %q: %v, using \"info\"", level, err)
		l = logrus.InfoLevel
	}
	return l
}
