// Package config handles YAML config file loading for the ng CLI.
package config

import (
	"os"
	"regexp"
)

// placeholderRE matches ${NAME} and ${NAME:-fallback}. Group 1 is the
// variable name, group 2 the fallback (empty when absent).
var placeholderRE = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes ${NAME} and ${NAME:-fallback} placeholders with
// environment variable values. A variable that is unset or empty takes
// the fallback; without one it expands to the empty string rather than
// erroring, leaving a missing required value to surface at downstream
// validation (an empty address failing to resolve, say).
func ExpandEnv(input string) string {
	return placeholderRE.ReplaceAllStringFunc(input, func(placeholder string) string {
		sub := placeholderRE.FindStringSubmatch(placeholder)
		if v := os.Getenv(sub[1]); v != "" {
			return v
		}
		return sub[2]
	})
}
