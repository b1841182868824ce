package main

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pthm/hxselect"
	"github.com/pthm/hxselect/internal/catalog"
	"github.com/pthm/hxselect/internal/config"
	"github.com/pthm/hxselect/internal/logging"
	"github.com/pthm/hxselect/search"
)

type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New(), logger: zap.NewNop()}
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "hxselect",
		Short: "Ajax select fields for templ and htmx applications",
		Long: `hxselect renders searchable single and multi select fields that mount
themselves into server-rendered pages. The CLI runs a demo server, a
terminal picker driven by the same widget, and prints field payloads.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ./hxselect.yaml)")
	f.String("log-level", "info", "log level: debug, info, warn or error")
	f.String("log-format", "json", "log format: json or console")
	f.String("locale", "en", "widget display language")
	f.Duration("search-timeout", 5*time.Second, "timeout for each search request")
	f.String("catalog", "", "YAML dataset served by the built-in search endpoint")
	bindFlags(a.v, f, map[string]string{
		"log.level":      "log-level",
		"log.format":     "log-format",
		"locale":         "locale",
		"search.timeout": "search-timeout",
		"catalog.path":   "catalog",
	})

	cmd.AddCommand(
		newServeCmd(a),
		newPickCmd(a),
		newPayloadCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// catalog returns the configured dataset, or the built-in pages.
func (a *app) catalog() (*catalog.Catalog, error) {
	if a.cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(a.cfg.Catalog.Path)
}

// registry builds a registry from the loaded configuration. A random props
// key is used when none is configured.
func (a *app) registry() (*hxselect.Registry, error) {
	key, err := a.cfg.Server.DecodeKey()
	if err != nil {
		return nil, err
	}
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate props key: %w", err)
		}
	}
	opts, err := a.registryOptions()
	if err != nil {
		return nil, err
	}
	return hxselect.NewRegistry(key, opts...), nil
}

func (a *app) registryOptions() ([]hxselect.Option, error) {
	client, err := search.NewClient(
		search.WithLogger(a.logger),
		search.WithLookupCache(a.cfg.Search.CacheSize),
	)
	if err != nil {
		return nil, err
	}
	return []hxselect.Option{
		hxselect.WithLogger(a.logger),
		hxselect.WithBasePath(a.cfg.Server.BasePath),
		hxselect.WithSearchClient(client),
		hxselect.WithSearchTimeout(a.cfg.Search.Timeout),
	}, nil
}
