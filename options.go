package indexdb

import (
	"github.com/hupe1980/indexdb/internal/fs"
)

// HashAlgorithm selects how archive entry content hashes are computed.
type HashAlgorithm string

const (
	// HashSHA256 hashes entries with SHA-256 ("sha256:<hex>"). This is the default.
	HashSHA256 HashAlgorithm = "sha256"
	// HashBLAKE3 hashes entries with BLAKE3-256 ("blake3:<hex>").
	HashBLAKE3 HashAlgorithm = "blake3"
)

type options struct {
	logger        *Logger
	metrics       MetricsCollector
	fs            fs.FileSystem
	hashAlgorithm HashAlgorithm
}

func defaultOptions() options {
	return options{
		logger:        NoopLogger(),
		metrics:       NoopMetricsCollector{},
		fs:            fs.Default,
		hashAlgorithm: HashSHA256,
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Option configures Index, Archive and ArchiveWriter construction.
type Option func(*options)

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithFileSystem sets the file system used by WriteFile.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithHashAlgorithm selects the content hash algorithm for archive entries.
func WithHashAlgorithm(alg HashAlgorithm) Option {
	return func(o *options) {
		o.hashAlgorithm = alg
	}
}
