// Package plugins contains the built-in bale plugins.
//
// Every plugin is stateless: its behavior is fixed by the options decoded at
// construction, so one instance serves every build.
package plugins
