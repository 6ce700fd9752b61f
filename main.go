package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xyproto/env/v2"

	"goclrmeta/common"
)

const (
	versionString = "clrmeta, version 0.3 (ECMA-335 metadata reader)"
	envPrefix     = "clrmeta"
	maxWorkers    = 16
)

// Config holds the settings shared by every command after flags, config
// file and environment have been merged by viper.
type Config struct {
	Debug      bool
	LogFormat  string
	Output     string
	Parallel   bool
	Workers    int
	CrossCheck bool
	NoColor    bool
}

var (
	cfgFile string
	config  = &Config{}
	log     = logrus.WithField(common.FieldSubsys, "cli")
)

var rootCmd = &cobra.Command{
	Use:   "clrmeta",
	Short: "Inspect .NET managed PE images",
	Long: `Read the PE container, CLI header, metadata root and metadata tables
of managed (.NET) executables and libraries without loading or running them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.clrmeta.yaml)")
	flags.BoolP("debug", "D", false, "Enable debug messages")
	flags.String("log-format", "text", "Log format: text or json")
	flags.StringP("output", "o", "text", "Output format: text, json or yaml")
	flags.Bool("no-color", env.Bool("NO_COLOR"), "Disable colored output")
	bindFlags(flags)

	rootCmd.AddCommand(newInspectCmd(), newSchemaCmd(), newRowsCmd(), newVersionCmd())
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
}

// bindFlags makes flags visible to viper under their long names.
func bindFlags(flags *pflag.FlagSet) {
	if err := viper.BindPFlags(flags); err != nil {
		log.WithError(err).Fatal("Unable to bind flags")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".clrmeta")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME")
	}
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.WithField("config", viper.ConfigFileUsed()).Debug("Using config file")
	} else if cfgFile != "" {
		log.WithError(err).Warn("Unable to read config file")
	}
}

func loadConfig() error {
	config.Debug = viper.GetBool("debug")
	config.LogFormat = viper.GetString("log-format")
	config.Output = viper.GetString("output")
	config.Parallel = viper.GetBool("parallel")
	config.Workers = viper.GetInt("workers")
	config.CrossCheck = viper.GetBool("cross-check")
	config.NoColor = viper.GetBool("no-color")

	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Workers > maxWorkers {
		config.Workers = maxWorkers
	}
	switch config.Output {
	case outputText, outputJSON, outputYAML:
	default:
		return errors.Errorf("unknown output format %q", config.Output)
	}

	setupLogging(config)
	color.NoColor = color.NoColor || config.NoColor
	return nil
}

func setupLogging(c *Config) {
	logger := logrus.StandardLogger()
	logger.SetOutput(os.Stderr)
	if c.Debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}
