package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/titlepatch/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:           "titlepatch",
	Short:         "Per-title guest memory patcher",
	Long:          "titlepatch loads per-title memory patches from TOML files and applies the enabled ones to a guest memory image.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.New().Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .titlepatch.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("patches-dir", "patches", "directory holding *.patch.toml files")
	flags.String("state-db", ".titlepatch.db", "SQLite database for enable/disable overrides (empty disables)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("telemetry", "", "append JSONL telemetry events to this file")

	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("patches_dir", flags.Lookup("patches-dir"))
	_ = viper.BindPFlag("state_db", flags.Lookup("state-db"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("telemetry_path", flags.Lookup("telemetry"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".titlepatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("TITLEPATCH")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}
