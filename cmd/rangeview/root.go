package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "rangeview",
	Short: "Progressive range loading of large ordered datasets",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := log.LvlFromString(viper.GetString("verbosity"))
		if err != nil {
			return err
		}
		log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat(false))))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("verbosity", "info", "Log level (trace, debug, info, warn, error, crit)")
	_ = viper.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbosity"))
}

func initConfig() {
	viper.SetEnvPrefix("RANGEVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
