/*
Copyright © 2018 the IMPROVER authors.
This file is part of IMPROVER.

IMPROVER is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

IMPROVER is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with IMPROVER.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package improverutil contains the command-line interface to the IMPROVER
// post-processing tools.
package improverutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/improver"
	"github.com/spatialmodel/improver/wxcode"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
type Cfg struct {
	*viper.Viper

	// Root is the main command.
	Root *cobra.Command

	// Log receives progress and warning messages.
	Log *logrus.Logger

	versionCmd, percentileCmd, wxcodeCmd *cobra.Command
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates a new set of commands and the configuration
// options they read.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper: viper.New(),
		Log:   newLogger(),
	}

	cfg.Root = &cobra.Command{
		Use:   "improver",
		Short: "Post-processing of weather forecast output.",
		Long: `IMPROVER post-processes gridded numerical weather prediction output.
Use the subcommands specified below to access the tools.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'IMPROVER_var' where 'var' is the
name of the variable to be set, in upper case and with dashes replaced by
underscores.
Refer to https://github.com/spf13/viper for additional configuration information.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return cfg.setConfig() },
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of IMPROVER.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "IMPROVER v%s\n", improver.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.percentileCmd = &cobra.Command{
		Use:   "percentile INPUT_FILE OUTPUT_FILE",
		Short: "Convert to percentiles.",
		Long: `percentile collapses coordinates of the cube in INPUT_FILE into a set
of percentiles, or, if the cube holds probabilities of exceeding thresholds
(its name starts with 'probability_of_'), converts the probabilities into
percentiles of the underlying diagnostic. The result is saved to OUTPUT_FILE.

If neither --percentiles nor --no-of-percentiles is given, the percentiles
0, 5, 10, 20, 25, 30, 40, 50, 60, 70, 75, 80, 90, 95 and 100 are generated.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := cfg.percentiles()
			if err != nil {
				return err
			}
			coords, err := getStringSlice("coordinates", cfg.Viper)
			if err != nil {
				return err
			}
			return Percentile(os.ExpandEnv(args[0]), os.ExpandEnv(args[1]),
				coords, ps, cfg.GetBool("ecc-bounds-warning"), cfg.Log)
		},
		DisableAutoGenTag: true,
	}

	cfg.wxcodeCmd = &cobra.Command{
		Use:   "wxcode INPUT_FILE... OUTPUT_FILE",
		Short: "Classify weather symbols.",
		Long: `wxcode assigns a weather symbol code to every grid cell by evaluating a
decision tree over the threshold probability cubes in the INPUT_FILEs, and
saves the symbols to OUTPUT_FILE. The built-in decision tree is used unless
another is given with --tree. Use --print-requirements to list the
probability cubes and thresholds the tree needs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(os.ExpandEnv(cfg.GetString("tree")))
			if err != nil {
				return err
			}
			if cfg.GetBool("print-requirements") {
				return wxcode.WriteRequirements(cmd.OutOrStdout(), tree)
			}
			if len(args) < 2 {
				return fmt.Errorf("improver: wxcode needs at least one input file and an output file, got %d arguments", len(args))
			}
			args = expandStringSlice(args)
			return WXCode(args[:len(args)-1], args[len(args)-1], tree, cfg.GetBool("day-night"), cfg.Log)
		},
		DisableAutoGenTag: true,
	}

	options := []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "verbose",
			usage: `
              verbose specifies whether to log debugging information.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "coordinates",
			usage: `
              coordinates specifies the coordinates to collapse into percentiles,
              for example "realization". It is required unless the input holds
              threshold probabilities.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{cfg.percentileCmd.Flags()},
		},
		{
			name: "percentiles",
			usage: `
              percentiles specifies the percentiles to generate. It can't be
              combined with no-of-percentiles.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{cfg.percentileCmd.Flags()},
		},
		{
			name: "no-of-percentiles",
			usage: `
              no-of-percentiles specifies the number of evenly spaced percentiles
              to generate, excluding 0 and 100. It can't be combined with
              percentiles.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.percentileCmd.Flags()},
		},
		{
			name: "ecc-bounds-warning",
			usage: `
              ecc-bounds-warning specifies that thresholds outside the plausible
              bounds of the diagnostic produce a warning rather than an error
              when converting probabilities to percentiles.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.percentileCmd.Flags()},
		},
		{
			name: "tree",
			usage: `
              tree specifies a TOML file holding the decision tree to use
              instead of the built-in one.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.wxcodeCmd.Flags()},
		},
		{
			name: "print-requirements",
			usage: `
              print-requirements specifies that the probability cubes and
              thresholds needed by the decision tree should be printed instead
              of classifying any data.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.wxcodeCmd.Flags()},
		},
		{
			name: "day-night",
			usage: `
              day-night specifies that day symbols should be replaced by their
              night equivalents where the sun is below the horizon. The inputs
              need latitude and longitude coordinates and a validity time.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.wxcodeCmd.Flags()},
		},
	}

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("IMPROVER")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, v, option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, v, option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, v, option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, v, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	// Link the commands together.
	cfg.Root.AddCommand(cfg.versionCmd)
	cfg.Root.AddCommand(cfg.percentileCmd)
	cfg.Root.AddCommand(cfg.wxcodeCmd)
	return cfg
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the logging level.
func (cfg *Cfg) setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("improver: problem reading configuration file: %v", err)
		}
	}
	if cfg.GetBool("verbose") {
		cfg.Log.SetLevel(logrus.DebugLevel)
	} else {
		cfg.Log.SetLevel(logrus.InfoLevel)
	}
	return nil
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	}
	return log
}

// Execute runs the command named by args (without the program name), as
// the standalone tools do.
func (cfg *Cfg) Execute(args ...string) error {
	cfg.Root.SetArgs(args)
	return cfg.Root.Execute()
}
