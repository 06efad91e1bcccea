/*
   ParmStore - redundant flash parameter store
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of ParmStore.

   ParmStore is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   ParmStore is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with ParmStore. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//
const epilogueHeader = `
Notes:

`

/*
	Logging is set up via logrus when the package is initialized, and can be
	tuned with these environment variables:

		LOG_FORMAT		`json` for JSON output
		LOG_FORCE_COLORS	non-empty to colorize output even without a TTY
		LOG_METHODS		non-empty to include the calling method
		LOG_LEVEL		`panic`, `fatal`, `error`, `warn`, `info`, `debug`, `trace`
*/
func init() {

	log.SetOutput(os.Stdout)

	switch {
	case strings.ToLower(os.Getenv("LOG_FORMAT")) == "json":
		log.SetFormatter(&log.JSONFormatter{})
	case os.Getenv("LOG_FORCE_COLORS") != "":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	}

	log.SetReportCaller(os.Getenv("LOG_METHODS") != "")

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		l, err := log.ParseLevel(level)
		if err != nil {
			log.Errorf("invalid log level '%s', valid levels are: panic, "+
				"fatal, error, warn, info, debug, trace", level)
		} else {
			log.SetLevel(l)
		}
	}
}

// UnderTest makes Die and DieOnError panic instead of exiting.
var UnderTest bool

// DieOnError exits the running process if e is not nil, printing e.
func DieOnError(e error) {
	if e != nil {
		Die("%v\n", e)
	}
}

// Die prints the given message and exits the running process.
func Die(msg string, params ...interface{}) {
	out := msg
	if len(params) > 0 {
		out = fmt.Sprintf(msg, params...)
	}
	fmt.Print(out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}
	if UnderTest {
		panic(out)
	}
	os.Exit(1)
}

//
func GetUserConfirmation(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	var res string
	fmt.Scanln(&res)
	return strings.ToLower(strings.TrimSpace(res)) == "y"
}

/*
	NewCommand creates a command wrapping a Cobra command. exec is called when
	the command's Execute method runs, and is expected to call ParseSettings
	before using any of the settings.
*/
func NewCommand(use, short, long, helpEpilogue string,
	exec func() error) *Command {

	ret := &Command{
		cmd: &cobra.Command{
			Use:   use,
			Short: short,
			Long:  long,
			RunE: func(*cobra.Command, []string) error {
				return exec()
			},
			SilenceErrors:         true,
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
		},
		viper:        viper.New(),
		settings:     map[string]*setting{},
		helpEpilogue: helpEpilogue,
	}
	ret.helpFunc = ret.cmd.HelpFunc()
	ret.cmd.SetHelpFunc(ret.help)
	return ret
}

/*
	Command ties together Cobra for the command line, and Viper for resolving
	settings. A setting can come from a flag, an environment variable, or its
	default, in that order of precedence. Required settings fail with a
	message naming both the flag and the environment variable.
*/
type Command struct {
	//
	cmd      *cobra.Command
	viper    *viper.Viper
	settings map[string]*setting
	//
	Args []string
	//
	helpEpilogue string
	helpFunc     func(*cobra.Command, []string)
}

//
func (c *Command) help(cmd *cobra.Command, args []string) {
	c.helpFunc(cmd, args)
	if c.helpEpilogue != "" {
		fmt.Fprintln(cmd.OutOrStdout(), epilogueHeader+c.helpEpilogue)
	} else {
		fmt.Fprintln(cmd.OutOrStdout())
	}
}

// Execute runs the command. If args is not empty, it overrides os.Args.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 {
		c.cmd.SetArgs(args)
	}
	return c.cmd.Execute()
}

/*
	AddSetting adds a setting bound to target, which needs to be a pointer to
	a string, int, uint, bool, or time.Duration. flag and short are the long
	and short command line flags, env the optional environment variable. def
	is the default, nil for the zero value. Required settings must not have a
	default.
*/
func (c *Command) AddSetting(target interface{}, flag, short, env string,
	def interface{}, help string, required bool) {

	if required && def != nil {
		Die("required setting '%s' does not take a default value", flag)
	}

	log.Tracef("add setting: flag=%s, env=%s, type=%T", flag, env, target)

	if def != nil {
		c.viper.SetDefault(flag, def)
	}
	if env != "" {
		help = fmt.Sprintf("%s (%s)", help, env)
	}

	flags := c.cmd.Flags()

	switch t := target.(type) {
	case *string:
		flags.StringVarP(t, flag, short, c.viper.GetString(flag), help)
	case *int:
		flags.IntVarP(t, flag, short, c.viper.GetInt(flag), help)
	case *uint:
		flags.UintVarP(t, flag, short, c.viper.GetUint(flag), help)
	case *bool:
		flags.BoolVarP(t, flag, short, c.viper.GetBool(flag), help)
	case *time.Duration:
		flags.DurationVarP(t, flag, short, c.viper.GetDuration(flag), help)
	default:
		Die("setting '%s' is of unsupported type %T", flag, target)
	}

	c.settings[flag] = &setting{
		flag: flag, env: env, required: required, target: target}

	if err := c.viper.BindPFlag(flag, flags.Lookup(flag)); err != nil {
		Die("cannot bind flag '%s': %v", flag, err)
	}
	if env != "" {
		if err := c.viper.BindEnv(flag, env); err != nil {
			Die("cannot bind environment variable '%s': %v", env, err)
		}
	}
}

// GetSetting resolves the setting for flag, and stores it in its target.
func (c *Command) GetSetting(flag string) (interface{}, error) {
	s, ok := c.settings[flag]
	if !ok {
		return nil, fmt.Errorf("undefined setting: %s", flag)
	}
	return s.resolve(c.viper)
}

// ParseSettings resolves all settings added so far, and sets Args to the
// remaining command line arguments.
func (c *Command) ParseSettings() {
	for flag := range c.settings {
		_, err := c.GetSetting(flag)
		DieOnError(err)
	}
	c.Args = c.cmd.Flags().Args()
}

// Flags gives access to the command's flag set.
func (c *Command) Flags() *pflag.FlagSet {
	return c.cmd.Flags()
}

//
type setting struct {
	flag     string
	env      string
	required bool
	target   interface{}
}

//
func (s *setting) resolve(v *viper.Viper) (interface{}, error) {

	if s.required && !v.IsSet(s.flag) {
		msg := fmt.Sprintf(
			"you need to specify the --%s command line flag", s.flag)
		if s.env != "" {
			msg = fmt.Sprintf("%s or the %s environment variable", msg, s.env)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	// Viper's BindEnv doesn't write to the flag's target, so we always set
	// the target from what Viper resolved
	var ret interface{}

	switch t := s.target.(type) {
	case *string:
		*t = v.GetString(s.flag)
		ret = *t
	case *int:
		*t = v.GetInt(s.flag)
		ret = *t
	case *uint:
		*t = v.GetUint(s.flag)
		ret = *t
	case *bool:
		*t = v.GetBool(s.flag)
		ret = *t
	case *time.Duration:
		*t = v.GetDuration(s.flag)
		ret = *t
	}

	log.Tracef("resolved setting: flag=%s, value='%v', set=%v",
		s.flag, ret, v.IsSet(s.flag))
	return ret, nil
}
