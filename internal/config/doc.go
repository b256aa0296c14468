// Package config loads and validates nbweave settings.
//
// Settings come from a single TOML file. A missing file is not an error;
// every field has a default so the zero configuration is usable. Values
// from the file are layered over the defaults, then validated as a whole.
package config
