// Package config defines the gateway configuration model and loads it from
// YAML.
//
// Values may reference the environment with ${VAR} or ${VAR:-default}; the
// substitution happens on the raw text before parsing, so every field can
// be driven by the process environment. When no file is given the embedded
// gateway.yaml is used, which wires the ten backend clusters to the
// *_SERVICE_URL variables.
//
//	cfg, err := config.Load("")           // embedded defaults + env
//	cfg, err := config.Load("gw.yaml")    // explicit file + env
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// The route table is read once at startup. Changing it requires a restart.
package config
