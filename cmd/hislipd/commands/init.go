package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scpigo/hislipd/internal/cli/prompt"
	"github.com/scpigo/hislipd/internal/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample hislipd configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/hislipd/config.yaml. Use --config to specify a custom path.

Examples:
  # Initialize with default location
  hislipd init

  # Initialize interactively, prompting for vendor id and listen address
  hislipd init --interactive

  # Force overwrite an existing config file
  hislipd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for vendor id and listen address instead of writing defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce && pathExists(configPath) {
		overwrite, err := prompt.Confirm(fmt.Sprintf("Configuration file already exists at %s. Overwrite?", configPath), false)
		if err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
		if !overwrite {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.GetDefaultConfig()

	if initInteractive {
		if err := promptForServerConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Printf("  2. Start the server with: hislipd start --config %s\n", configPath)

	return nil
}

// promptForServerConfig asks for the handful of fields a new deployment
// most commonly needs to change, leaving everything else at its default.
func promptForServerConfig(cfg *config.Config) error {
	listenAddress, err := prompt.Input("Listen address", cfg.Server.ListenAddress)
	if err != nil {
		return err
	}
	cfg.Server.ListenAddress = listenAddress

	vendorID, err := prompt.InputInt("Vendor id (IEEE-assigned)", int(cfg.Server.VendorID))
	if err != nil {
		return err
	}
	cfg.Server.VendorID = uint16(vendorID)

	idn, err := prompt.Input("Identification string (*IDN? response)", cfg.Server.ShortIDN)
	if err != nil {
		return err
	}
	cfg.Server.ShortIDN = idn

	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
