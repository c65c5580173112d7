package configs

import (
	_ "embed"
)

// Defaults is the built-in configuration every user file is merged over.
//
//go:embed defaults.yaml
var Defaults []byte
