package cli

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/mehmetkoksal-w/lingua/internal/annotations"
	"github.com/mehmetkoksal-w/lingua/internal/config"
	"github.com/mehmetkoksal-w/lingua/internal/lifecycle"
	"github.com/mehmetkoksal-w/lingua/internal/logger"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
	annotationsprovider "github.com/mehmetkoksal-w/lingua/internal/providers/annotations"
	"github.com/mehmetkoksal-w/lingua/internal/providers/jsonlang"
	"github.com/mehmetkoksal-w/lingua/internal/server"
)

// cmdServe starts the stdio language server. Everything diagnostic goes to
// the log file; stdout carries only protocol messages.
func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	root := addRootFlag(fs)
	logPath := fs.String("log", "", "Log file path (default: .lingua/lingua.log)")
	fs.Bool("stdio", true, "Use stdio transport (default)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}

	cfg, err := config.Load(rootPath)
	if err != nil {
		return err
	}

	path := cfg.LogFile(rootPath)
	if *logPath != "" {
		path = *logPath
	}
	srvLog, closeLog, err := logger.ServerFile(path)
	if err != nil {
		return err
	}
	defer closeLog()

	srv := server.NewServer()
	srv.SetLogger(srvLog)
	srv.SetExtraArgs(fs.Args())
	srv.SetDebounceDelay(cfg.Debounce())
	srv.SetMonitorOptions(lifecycle.WithPollInterval(cfg.PollInterval()))

	srv.AddSource(provider.SourceFunc{
		SourceName: "builtin",
		Load: func() ([]provider.CapabilityProvider, error) {
			return []provider.CapabilityProvider{jsonlang.New()}, nil
		},
	})
	srv.AddSource(configSource(cfg))

	if cfg.AnnotationsEnabled() {
		store, err := annotations.Open(cfg.AnnotationsStore(rootPath))
		if err != nil {
			// The server works without the store, with fewer diagnostics.
			srvLog.Printf("annotation store unavailable: %v", err)
		} else {
			defer store.Close()
			exts := cfg.Annotations.Extensions
			srv.AddSource(provider.SourceFunc{
				SourceName: "annotations",
				Load: func() ([]provider.CapabilityProvider, error) {
					return []provider.CapabilityProvider{
						annotationsprovider.New(store, rootPath, exts),
					}, nil
				},
			})
		}
	}

	stop := lifecycle.WatchInterrupt(srv.ShutdownSignal(), srvLog)
	defer stop()

	srvLog.Printf("lingua server started (root: %s)", rootPath)
	return srv.Run(context.Background())
}

// configSource turns the languages block of lingua.jsonc into routing-only
// providers, letting a workspace extend selectors without shipping code.
func configSource(cfg *config.Config) provider.Source {
	return provider.SourceFunc{
		SourceName: "config",
		Load: func() ([]provider.CapabilityProvider, error) {
			var out []provider.CapabilityProvider
			for _, lang := range cfg.Languages {
				if lang.Language == "" {
					return nil, fmt.Errorf("language entry with empty name")
				}
				out = append(out, provider.Static{Lang: lang.Language, Exts: lang.Extensions})
			}
			return out, nil
		},
	}
}
