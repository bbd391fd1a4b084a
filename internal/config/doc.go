// Package config loads keychord's configuration file.
//
// A configuration names the monitors to start, the chords to bind and the
// reflector handlers to install. TOML is the default format; files ending in
// .yaml or .yml are read as YAML:
//
//	[log]
//	level = "info"
//	format = "text"
//
//	[lua]
//	timeout = "2s"
//
//	[[monitors]]
//	source = "terminal"
//	display_keys = true
//
//	[[bindings]]
//	chord = "ctrl+s"
//	name = "save"
//	action = "lua"
//	lua = 'return "saved"'
//
//	[[reflectors]]
//	key = "saved"
//	action = "print"
//	message = "saved!"
//
// A missing file yields Default(). The watcher sub-package reports edits so
// the application can reload bindings without restarting.
package config
