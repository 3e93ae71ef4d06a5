package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tinrooster/tedecom-v1/internal/cli/commands"
)

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "tedecom",
	Short: "tedecom CLI - decommissioning reports",
	Long: `tedecom is a command-line tool for the equipment decommissioning tracker.
It creates, schedules and downloads reports and manages report templates.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func initConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".tedecom")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	viper.AddConfigPath(dir)
	viper.SetConfigName("cli")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("TEDECOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read CLI config: %w", err)
		}
	}
	if apiURL != "" {
		viper.Set("api_url", apiURL)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (default http://localhost:8080)")

	// Add commands
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewScheduleCommand())
	rootCmd.AddCommand(commands.NewTemplateCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
