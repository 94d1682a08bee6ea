// Package config provides YAML-based configuration for the Anchor evidence
// integrity ledger.
//
// Configuration is loaded from a YAML file, merged with defaults, and
// validated before use:
//
//	cfg, err := config.Load("anchor.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Every field has a sensible default, so an empty file (or config.NewDefault)
// yields a working embedded-ledger setup. LoadWithEnvOverrides additionally
// applies ANCHOR_* environment variables on top of the file, which is the
// path container deployments use.
//
// Validation collects all problems into a single ValidationError rather than
// stopping at the first, so a broken config file reports everything wrong
// with it in one pass.
package config
