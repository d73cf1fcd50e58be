// SPDX-License-Identifier: MPL-2.0

// Package cueutil compiles CUE documents against an embedded schema.
//
// Every caller follows the same flow: compile the schema, compile the user
// file and unify it with a schema definition, then validate and decode.
// Errors carry the file name and the field path of the offending value, for
// example "config.cue: wheel.compression_level: invalid value 12".
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	settings, err := cueutil.DecodeMap(schema, data, "#Config",
//	    cueutil.WithFilename("config.cue"))
package cueutil
