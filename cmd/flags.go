package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/mist/internal/validation"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port int
	Host string

	// State flags
	StateFile string
	Watch     bool

	// Output flags
	OutputFormat string
}

// Flag groups accepted by AddStandardFlags.
const (
	ServerFlags = "server"
	StateFlags  = "state"
	OutputFlags = "output"
)

// OutputFormats lists the accepted --output values.
var OutputFormats = []string{"table", "json", "yaml"}

// AddStandardFlags adds the named flag groups to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case ServerFlags:
			addServerFlags(cmd, flags)
		case StateFlags:
			addStateFlags(cmd, flags)
		case OutputFlags:
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 8080, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	AddFlagValidation(cmd, "port", ValidatePort)
}

func addStateFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.StateFile, "state", "s", "", "YAML file with the initial application state")
	cmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "Reload the state file when it changes")
	AddFlagValidation(cmd, "state", ValidateStateFile)
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table",
		fmt.Sprintf("Output format (%s)", strings.Join(OutputFormats, "|")))
	AddFlagValidation(cmd, "output", ValidateOutputFormat)
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Port < 0 || f.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", f.Port)
	}

	if f.Watch && f.StateFile == "" {
		return fmt.Errorf("--watch needs --state")
	}

	if f.OutputFormat != "" {
		if err := ValidateOutputFormat(f.OutputFormat); err != nil {
			return err
		}
	}

	return nil
}

// bindFlags binds flags to viper configuration keys.
func bindFlags(fs *pflag.FlagSet, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := fs.Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort checks a port number. Zero picks a free port.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidateFileExists checks that an optional file exists.
func ValidateFileExists(filename string) error {
	if filename == "" {
		return nil
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}

	return nil
}

// ValidateStateFile checks an optional state file path and that it exists.
func ValidateStateFile(filename string) error {
	if filename == "" {
		return nil
	}
	if err := validation.ValidatePath(filename); err != nil {
		return err
	}
	return ValidateFileExists(filename)
}

// ValidateOutputFormat checks an --output value.
func ValidateOutputFormat(format string) error {
	for _, valid := range OutputFormats {
		if format == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s",
		format, strings.Join(OutputFormats, ", "))
}
