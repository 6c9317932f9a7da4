// Package rconfig loads the YAML file a single rank uses to find its own
// position in the static overlay and its shell/transport defaults
// (SPEC_FULL.md §4.10 "Topology config loading" — spec.md places
// "configuration parsing" out of scope as an external collaborator, but
// never specifies how a rank discovers its place in a tree "fixed for the
// lifetime of an instance").
package rconfig

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} patterns in input with
// their environment variable values. Unset variables without a default
// expand to the empty string rather than erroring.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		name := groups[1]
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if len(groups) >= 3 && groups[2] != "" {
			return groups[2]
		}
		return ""
	})
}
