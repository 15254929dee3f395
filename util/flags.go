package util

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to a flag name to build the environment variable that can set it
const EnvPrefix = "GENUP_"

// SetFlagsFromEnvVars reads and updates persistent and local flag values from environment variables with prefix GENUP_
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	apply := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				return
			}

			envName := FlagNameToEnvVar(f.Name, EnvPrefix)
			value, present := os.LookupEnv(envName)
			if !present {
				return
			}

			if err := flags.Set(f.Name, value); err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, envName, err)
			}
		})
	}

	apply(cmd.PersistentFlags())
	apply(cmd.Flags())
}

// FlagNameToEnvVar converts flag name to environment var name adding a prefix,
// replacing dashes and making all uppercase (e.g. manifest-url is converted to GENUP_MANIFEST_URL)
func FlagNameToEnvVar(cmdFlag string, prefix string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(cmdFlag, "-", "_"))
}
