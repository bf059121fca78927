// Package publish uploads index archives to a blob store and switches readers
// to them by rewriting a pointer blob.
//
// Archives are grouped by release name. Every archive is uploaded under a
// fresh, time-ordered key and is never modified afterwards. Publishing
// finishes by writing the key into the name's pointer blob (CURRENT/<name>),
// so readers see either the previous or the new archive and never a partial
// upload. Each name has its own live release. With
// blobstore/s3.DDBCommitStore the pointer update is a DynamoDB conditional
// write.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/indexdb"
	"github.com/hupe1980/indexdb/blobstore"
	"github.com/hupe1980/indexdb/internal/resource"
)

const (
	// CurrentName is the namespace of the pointer blobs; CURRENT/<name> holds
	// the key of the live archive of name.
	CurrentName = "CURRENT"
	// ArchivePrefix is the namespace of uploaded archives.
	ArchivePrefix = "archives/"
)

// ErrNoRelease is returned when nothing has been published yet.
var ErrNoRelease = errors.New("publish: no release")

// Release describes one published archive.
type Release struct {
	// Name groups releases of the same archive, e.g. a project.
	Name string
	// Key is the blob name of the archive.
	Key     string
	Size    int64
	Entries int
}

// Publisher publishes archives into a blob store.
type Publisher struct {
	store    blobstore.BlobStore
	archives blobstore.BlobStore
	rc       *resource.Controller
	logger   *indexdb.Logger
	verify   bool
}

// Option configures a Publisher.
type Option func(*options)

type options struct {
	compression string
	rc          *resource.Controller
	logger      *indexdb.Logger
	verify      bool
}

// WithCompression compresses uploaded archives ("none", "lz4" or "zstd").
// The pointer blob is never compressed.
func WithCompression(alg string) Option {
	return func(o *options) {
		o.compression = alg
	}
}

// WithResourceController throttles uploads and downloads to the controller's
// IO limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithLogger sets the logger.
func WithLogger(l *indexdb.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithVerify recomputes every entry hash before uploading.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// New returns a publisher writing to store.
func New(store blobstore.BlobStore, optFns ...Option) (*Publisher, error) {
	o := options{compression: "none"}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = indexdb.NoopLogger()
	}

	archives := store
	if o.compression != "" && o.compression != "none" {
		cs, err := blobstore.NewCompressedStore(store, o.compression)
		if err != nil {
			return nil, err
		}
		archives = cs
	}
	return &Publisher{
		store:    store,
		archives: archives,
		rc:       o.rc,
		logger:   o.logger,
		verify:   o.verify,
	}, nil
}

// newKey returns a fresh archive key. Version 7 UUIDs sort by creation time,
// so the releases of one name list oldest first.
func newKey(name string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return ArchivePrefix + name + "/" + id.String() + ".iar", nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("publish: invalid release name %q", name)
	}
	return nil
}

// Publish uploads the archive file at archivePath and makes it current.
// The archive is validated before anything is uploaded. If the pointer
// cannot be updated the uploaded archive is deleted again.
func (p *Publisher) Publish(ctx context.Context, name, archivePath string) (Release, error) {
	if err := validName(name); err != nil {
		return Release{}, err
	}
	start := time.Now()

	ar, err := indexdb.OpenArchive(archivePath)
	if err != nil {
		return Release{}, fmt.Errorf("publish %s: %w", archivePath, err)
	}
	if p.verify {
		for i := 0; i < ar.Len(); i++ {
			if err := ar.VerifyEntry(ctx, i); err != nil {
				return Release{}, fmt.Errorf("publish %s: %w", archivePath, err)
			}
		}
	}

	key, err := newKey(name)
	if err != nil {
		return Release{}, err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return Release{}, err
	}
	defer f.Close()

	n, err := blobstore.Copy(ctx, p.archives, key, p.rc.RateLimitedReader(ctx, f))
	if err != nil {
		return Release{}, fmt.Errorf("publish %s: upload: %w", name, err)
	}

	if err := p.store.Put(ctx, pointerName(name), []byte(key)); err != nil {
		if derr := p.archives.Delete(ctx, key); derr != nil {
			p.logger.Warn("failed to delete orphaned archive", "key", key, "error", derr)
		}
		return Release{}, fmt.Errorf("publish %s: update %s: %w", name, pointerName(name), err)
	}

	rel := Release{Name: name, Key: key, Size: n, Entries: ar.Len()}
	p.logger.Info("archive published",
		"name", name,
		"key", key,
		"bytes", n,
		"entries", rel.Entries,
		"elapsed", time.Since(start),
	)
	return rel, nil
}

// pointerName returns the pointer blob of the release name.
func pointerName(name string) string { return CurrentName + "/" + name }

// Current returns the key of the live archive of name.
func (p *Publisher) Current(ctx context.Context, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	data, err := blobstore.Get(ctx, p.store, pointerName(name))
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoRelease
	}
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", ErrNoRelease
	}
	return key, nil
}

// Snapshot is an opened release. It keeps the backing blob open until Close.
type Snapshot struct {
	*indexdb.Archive
	Name string
	Key  string
	blob blobstore.Blob
}

// Close releases the blob. Indexes opened from the snapshot must be closed
// first.
func (s *Snapshot) Close() error { return s.blob.Close() }

// Open opens the live archive of name directly from the store.
func (p *Publisher) Open(ctx context.Context, name string, optFns ...indexdb.Option) (*Snapshot, error) {
	key, err := p.Current(ctx, name)
	if err != nil {
		return nil, err
	}
	blob, err := p.archives.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	ar, err := indexdb.OpenArchiveBlob(ctx, blob, optFns...)
	if err != nil {
		_ = blob.Close()
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return &Snapshot{Archive: ar, Name: name, Key: key, blob: blob}, nil
}

// Fetch downloads the live archive of name to dst and returns its key. dst is
// replaced atomically and checked to be a readable archive.
func (p *Publisher) Fetch(ctx context.Context, name, dst string) (string, error) {
	key, err := p.Current(ctx, name)
	if err != nil {
		return "", err
	}
	blob, err := p.archives.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}
	defer rc.Close()

	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	_, err = f.ReadFrom(p.rc.RateLimitedReader(ctx, rc))
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		_, err = indexdb.OpenArchive(tmp)
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}

	p.logger.Info("archive fetched", "key", key, "path", dst, "bytes", blob.Size())
	return key, nil
}

// Releases returns the archive keys published under name, oldest first.
func (p *Publisher) Releases(ctx context.Context, name string) ([]string, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return p.archives.List(ctx, ArchivePrefix+name+"/")
}

// Prune deletes all but the newest keep releases of name. The live archive of
// name is never deleted. It returns the deleted keys.
func (p *Publisher) Prune(ctx context.Context, name string, keep int) ([]string, error) {
	keys, err := p.Releases(ctx, name)
	if err != nil {
		return nil, err
	}
	current, err := p.Current(ctx, name)
	if err != nil && !errors.Is(err, ErrNoRelease) {
		return nil, err
	}

	var deleted []string
	for i, key := range keys {
		if i >= len(keys)-max(keep, 0) || key == current {
			continue
		}
		if err := p.archives.Delete(ctx, key); err != nil {
			return deleted, fmt.Errorf("prune %s: %w", key, err)
		}
		deleted = append(deleted, key)
	}
	if len(deleted) > 0 {
		p.logger.Info("releases pruned", "name", name, "deleted", len(deleted))
	}
	return deleted, nil
}
