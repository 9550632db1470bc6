package main

import _ "embed"

// embeddedConfig holds the YAML configuration embedded at build time. It is
// the lowest data layer, below any config file, env var or flag.
//
//go:embed embed_config.yaml
var embeddedConfig []byte
