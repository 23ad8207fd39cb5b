// Package defaults provides the embedded default configuration file
// for the multisense init subcommand.
package defaults

import _ "embed"

//go:embed multisense.example.yaml
var ConfigYAML []byte
