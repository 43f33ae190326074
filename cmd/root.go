package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/gosec-posture/pkg/config"
	"github.com/user/gosec-posture/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "gosec-posture",
	Short: "Host security posture assessment",
	Long: `gosec-posture samples the state of the machine it runs on (uptime,
memory, CPU, processes, external connections and OS security controls),
turns it into a risk score and a compliance percentage, and keeps a log
of security incidents.`,
	SilenceUsage: true,
}

var (
	DebugMode  bool
	ConfigPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default ~/.gosec-posture/config.yaml)")
}

// configPath resolves --config or the default location.
func configPath() (string, error) {
	if ConfigPath != "" {
		return ConfigPath, nil
	}
	return config.GetConfigPath()
}

func loadConfig() (*config.Config, error) {
	if ConfigPath == "" {
		return config.LoadConfig()
	}
	return config.LoadFrom(ConfigPath)
}

func saveConfig(cfg *config.Config) error {
	if ConfigPath == "" {
		return config.SaveConfig(cfg)
	}
	return config.SaveTo(cfg, ConfigPath)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Debug:  DebugMode,
	})
}
