// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ParseAndDecode validates data against the schemaPath definition of schema
// and decodes the unified value into T.
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*T, error) {
	unified, filename, err := unify(schema, data, schemaPath, opts)
	if err != nil {
		return nil, err
	}
	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}
	return &result, nil
}

// DecodeMap validates data like ParseAndDecode and returns the fields that
// are set as a nested map, ready to merge over defaults.
func DecodeMap(schema, data []byte, schemaPath string, opts ...Option) (map[string]any, error) {
	unified, filename, err := unify(schema, data, schemaPath, opts)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := unified.Decode(&out); err != nil {
		return nil, FormatError(err, filename)
	}
	return out, nil
}

func unify(schema, data []byte, schemaPath string, opts []Option) (cue.Value, string, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	filename := o.filename
	if filename == "" {
		filename = "<input>"
	}
	if err := CheckFileSize(data, o.maxFileSize, filename); err != nil {
		return cue.Value{}, "", err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, "", fmt.Errorf("internal error: compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if root.Err() != nil {
		return cue.Value{}, "", fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, root.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return cue.Value{}, "", FormatError(userValue.Err(), filename)
	}
	unified := root.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return cue.Value{}, "", FormatError(err, filename)
	}
	return unified, filename, nil
}
