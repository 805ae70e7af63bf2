package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	hostconfig "github.com/polyver/polyver/internal/config"
	"github.com/polyver/polyver/internal/logger"
	"github.com/polyver/polyver/pkg/config"
	"github.com/polyver/polyver/pkg/plugin"
	"github.com/polyver/polyver/pkg/tool"
)

// session wires everything one command invocation needs. Built per command,
// torn down when the command returns.
type session struct {
	cfg       *hostconfig.Config
	log       *logger.Logger
	env       tool.Env
	store     *config.Store
	discovery *plugin.Discovery
	loader    *plugin.Loader
}

// newSession loads the host config and stands up the plugin machinery.
func newSession() (*session, error) {
	cfg, err := hostconfig.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if errs := hostconfig.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %v", errs[0])
	}

	logCfg := logger.Config{
		Level:   logLevel,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}

	env := tool.DefaultEnv(cfg.RootDir)
	env.Plugins = plugin.DiscoveryConfig{
		BuiltinDir: cfg.Plugins.BuiltinDir,
		UserDir:    cfg.Plugins.UserDir,
		ExtraDirs:  cfg.Plugins.ExtraDirs,
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	zl := log.GetZerolog()
	store := config.NewStore(
		filepath.Join(cfg.RootDir, config.DocumentName),
		filepath.Join(cwd, config.DocumentName),
		zl,
	)

	metadata := plugin.NewMetadataLoader(zl)
	registry := plugin.NewRegistry()

	return &session{
		cfg:       cfg,
		log:       log,
		env:       env,
		store:     store,
		discovery: plugin.NewDiscovery(zl),
		loader:    plugin.NewLoader(zl, metadata, registry),
	}, nil
}

// openTool discovers, starts, and wires the plugin for one tool.
func (s *session) openTool(id string) (*tool.Tool, error) {
	t, err := tool.Load(s.env, id, s.store, s.discovery, s.loader, s.log.GetZerolog())
	if err != nil {
		return nil, err
	}

	t.SetFetcher(tool.NewFetcher(time.Duration(s.cfg.HTTP.TimeoutSeconds) * time.Second))
	return t, nil
}

// baseLogger returns the session's base logger.
func (s *session) baseLogger() zerolog.Logger {
	return s.log.GetZerolog()
}

// Close kills every plugin process and releases the log file.
func (s *session) Close() {
	s.loader.Shutdown()
	s.log.Close()
}
