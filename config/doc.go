// Package config provides the YAML plus environment configuration layer and
// a polling file watcher for configuration changes.
package config
