package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ebosacco/ussd-gateway/internal/config"
	"github.com/ebosacco/ussd-gateway/pkg/menu"
	"github.com/ebosacco/ussd-gateway/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the menu graph without starting the server",
	Long:  `Loads the configuration and menu file and runs the same integrity checks the server runs at boot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		validator := validate.New(
			validate.WithCountryCode(cfg.Validation.CountryCode),
			validate.WithNetworks(cfg.Validation.Networks),
			validate.WithAmountBounds(cfg.Validation.MinAmount, cfg.Validation.MaxAmount),
		)

		graph, err := menu.Load(cfg.MenuFile, validator)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d nodes, entry %q, main menu %q\n", cfg.MenuFile, len(graph.Nodes()), graph.Entry(), graph.MainMenu())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
