package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ussd-gateway",
	Short: "USSD dialog gateway for EBO SACCO mobile banking",
	Long: `ussd-gateway terminates the aggregator's HTTP callbacks and drives
subscribers through the banking menu: authentication, balance, transfers,
airtime and bill payments against the core-banking backend.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")
}
