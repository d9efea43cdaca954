package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/videoforge/videoforge/pkg/config"
)

var configInitPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Writes the default configuration to videoforge.yaml. Existing files are never overwritten.`,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configInitPath, "path", "videoforge.yaml", "destination path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(configInitPath); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", configInitPath)
	return nil
}
