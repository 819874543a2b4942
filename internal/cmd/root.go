package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "labelmorph",
	Short: "Label-aware erosion and dilation of N-dimensional label images",
	Long: `labelmorph erodes and dilates label images with separable parabolic
distance transforms.

Erosion shrinks every labelled region independently, so touching regions
separate. Dilation grows regions into background until they meet a region
of another label. Images may be 2-D PNG/TIFF files or N-dimensional raw
volumes described by a YAML header.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("history", "", "SQLite database recording every run (empty disables history)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	mustBind("history", rootCmd.PersistentFlags().Lookup("history"))
	mustBind("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("LABELMORPH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
