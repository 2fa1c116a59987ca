// Package config provides configuration structures and utilities for
// cardmeter. It defines defaults for the catalog sources, the external
// installer invocation, and report generation, plus the optional .cardmeter
// YAML file holding per-app install recipes and repository lists.
package config
