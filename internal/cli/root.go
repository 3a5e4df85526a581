// Package cli implements the pantry command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/pantry/internal/catalog"
	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and the state loaded before a subcommand
// runs. Each root command owns its own app.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	config *viper.Viper
	logger *slog.Logger
}

// NewRootCmd creates the top-level "pantry" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: slog.Default()}
	root := &cobra.Command{
		Use:     "pantry",
		Short:   "A profile-driven product catalog",
		Long:    "Pantry keeps a catalog of products in a local SQLite database.\nEvery command runs through the crud pipelines and the catalog profiles.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newRenameCmd(a),
		newRemoveCmd(a),
		newSyncCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "pantry:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode maps failures the user can fix onto exitUserError and everything
// else onto exitSysError.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, types.ErrFailedToFind),
		errors.Is(err, types.ErrHookFailed),
		errors.Is(err, types.ErrDuplicateKey):
		return exitUserError
	default:
		return exitSysError
	}
}

// errUsage marks malformed command input.
var errUsage = errors.New("invalid usage")

// load resolves the config directory, reads config.yaml and builds the
// logger.
func (a *app) load(stderr io.Writer) error {
	dir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = dir

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	a.config = cfg
	a.logger = newLogger(stderr, cfg.GetString(cfgKeyLogLevel))
	return nil
}

// storeConfig decodes the backend configuration and applies directory
// resolution to its data directory.
func (a *app) storeConfig() (types.Config, error) {
	var cfg types.Config
	if err := a.config.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	dataDir, err := paths.ResolveDataDir(a.dataDir, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %q: %w", cfg.Backend, err)
	}
	return cfg, nil
}
