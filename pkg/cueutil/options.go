// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize bounds the documents accepted by the decoders.
const DefaultMaxFileSize int64 = 1 << 20

type (
	// Option configures a decode.
	Option func(*options)

	options struct {
		filename    string
		maxFileSize int64
		concrete    bool
	}
)

func defaultOptions() options {
	return options{maxFileSize: DefaultMaxFileSize}
}

// WithFilename names the document in error messages.
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithConcrete requires every field of the unified value to be concrete.
// Without it, optional schema fields may stay unset.
func WithConcrete() Option {
	return func(o *options) { o.concrete = true }
}
