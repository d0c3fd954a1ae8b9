package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"filesage/internal/config"
	"filesage/internal/logging"
)

var (
	// Global flags
	verbose bool
	intent  string
	dryRun  bool
	assume  bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "filesage",
	Short: "filesage - LLM-assisted file organization",
	Long: `filesage asks a language model how to organize a directory, negotiates
the proposal with you over a few turns, and then applies the approved
file moves.

Suggestions are cached per directory fingerprint: re-running on an
unchanged directory skips the model entirely.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = buildLogger(verbose)
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// buildLogger tees console output with a rotating debug log file.
func buildLogger(verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)

	home, err := os.UserHomeDir()
	if err != nil {
		return zap.New(consoleCore)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(home, config.StateDirName, "filesage.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		zap.DebugLevel,
	)

	return zap.New(zapcore.NewTee(consoleCore, fileCore))
}

// initWorkspace loads config for a target directory and wires the
// category debug logs.
func initWorkspace(dir string) (*config.Config, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	cfg, err := config.Load(config.DefaultPath(abs))
	if err != nil {
		return nil, "", err
	}

	stateDir := filepath.Join(abs, config.StateDirName)
	if err := logging.Initialize(stateDir, logging.Options{
		Enabled:    cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	}); err != nil {
		return nil, "", err
	}
	logging.Boot("workspace %s", abs)

	return cfg, abs, nil
}

// stateDir returns the .filesage directory for a workspace.
func stateDir(workspace string) string {
	return filepath.Join(workspace, config.StateDirName)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")

	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
