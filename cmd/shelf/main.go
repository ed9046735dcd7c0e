package main

import (
	"fmt"
	"os"

	"github.com/franz/shelf/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "shelf",
		Short: "Shelf - a local library and reader for PDF, EPUB and text books",
		Long: `shelf keeps a local library of PDF, EPUB and plain-text books in a
single SQLite file. It extracts titles, authors and covers on import,
opens books at the position you left them, and tracks reading streaks.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
			util.SetColors(util.IsTerminal(os.Stderr.Fd()))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults()

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/shelf.yaml)")
	rootCmd.PersistentFlags().String("db", defaultDB, "library database file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().String("events-dir", defaultEventsDir, "directory for JSONL audit logs")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("events_dir", rootCmd.PersistentFlags().Lookup("events-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("shelf")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SHELF")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
