// internal/safe/safe.go
package safe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"twig/internal/object"
	"twig/internal/storage"
	"twig/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidHash    = errors.New("invalid object hash")
	ErrHashMismatch   = errors.New("object hash mismatch")
	ErrWrongKind      = errors.New("object has unexpected kind")
	ErrAmbiguousID    = errors.New("ambiguous object id prefix")
)

// ObjectMeta is the catalog entry kept for every stored object.
type ObjectMeta struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *ObjectMeta) GetID() string { return m.ID }

// Safe is the content addressed object store. Object files are immutable and
// named by id; the badger catalog indexes them by kind.
type Safe struct {
	root    string
	catalog map[object.Kind]*storage.BadgerStore
	cache   *lru.Cache[string, object.Object]
	cm      *compressionManager
	logger  *zap.Logger
}

// Options configures Safe behavior
type Options struct {
	Root        string // Directory holding object files
	CacheSize   int    // Number of decoded objects to cache
	Compression CompressionOptions
	Logger      *zap.Logger
}

// New creates a Safe over db, rebuilding the catalog from the object files if
// it is empty.
func New(db *badger.DB, opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	cache, err := lru.New[string, object.Object](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	cm, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compression manager: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Safe{
		root: opts.Root,
		catalog: map[object.Kind]*storage.BadgerStore{
			object.KindBlob:   storage.NewBadgerStore(db, object.KindBlob.String()),
			object.KindCommit: storage.NewBadgerStore(db, object.KindCommit.String()),
		},
		cache:  cache,
		cm:     cm,
		logger: logger,
	}

	if err := s.ensureCatalog(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Safe) Close() {
	s.cm.close()
	s.cache.Purge()
}

// Put stores obj if it is not already present and returns its id. An object
// file left without a catalog entry is cataloged again.
func (s *Safe) Put(obj object.Object) (string, error) {
	id := obj.ID()
	path := s.objectPath(id)

	exists, err := s.Has(id)
	if err != nil {
		return "", fmt.Errorf("checking object %s: %w", id, err)
	}

	var meta *ObjectMeta
	if exists {
		cataloged, err := s.catalog[obj.Kind()].Has(id)
		if err != nil {
			return "", fmt.Errorf("checking catalog for %s: %w", id, err)
		}
		if cataloged {
			s.cache.Add(id, obj)
			return id, nil
		}
		if meta, err = s.metaFromFile(id); err != nil {
			return "", err
		}
		s.logger.Warn("object file missing from catalog", zap.String("id", id))
	} else {
		envelope, err := object.Encode(obj)
		if err != nil {
			return "", err
		}
		data, compressed := s.cm.compress(envelope)
		if err := utils.WriteFileAtomic(path, data, 0444); err != nil {
			return "", fmt.Errorf("writing object %s: %w", id, err)
		}
		meta = &ObjectMeta{
			ID:         id,
			Kind:       obj.Kind().String(),
			Size:       int64(len(envelope) - 1),
			Compressed: compressed,
			CreatedAt:  time.Now().UTC(),
		}
	}

	if err := s.catalog[obj.Kind()].Put(meta); err != nil {
		if !exists {
			os.Remove(path)
		}
		return "", fmt.Errorf("cataloging object %s: %w", id, err)
	}

	s.cache.Add(id, obj)
	s.logger.Debug("stored object",
		zap.String("id", id),
		zap.Stringer("kind", obj.Kind()),
		zap.Bool("compressed", meta.Compressed))
	return id, nil
}

// PutBlob stores content as a blob.
func (s *Safe) PutBlob(content []byte) (string, error) {
	return s.Put(object.NewBlob(content))
}

// Get reads and verifies the object stored under id.
func (s *Safe) Get(id string) (object.Object, error) {
	if !utils.IsHash(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, id)
	}
	if obj, ok := s.cache.Get(id); ok {
		return obj, nil
	}

	obj, err := s.readFile(id)
	if err != nil {
		return nil, err
	}
	if obj.ID() != id {
		return nil, fmt.Errorf("%w: %s", ErrHashMismatch, id)
	}

	s.cache.Add(id, obj)
	return obj, nil
}

func (s *Safe) Blob(id string) (*object.Blob, error) {
	obj, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	b, ok := obj.(*object.Blob)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, id, obj.Kind())
	}
	return b, nil
}

func (s *Safe) Commit(id string) (*object.Commit, error) {
	obj, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*object.Commit)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, id, obj.Kind())
	}
	return c, nil
}

// Has reports whether an object file exists for id.
func (s *Safe) Has(id string) (bool, error) {
	if !utils.IsHash(id) {
		return false, nil
	}
	_, err := os.Stat(s.objectPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Commits lists the ids of every stored commit.
func (s *Safe) Commits() ([]string, error) {
	return s.catalog[object.KindCommit].IDs("")
}

// ResolveCommit expands a commit id prefix to the single commit it names.
func (s *Safe) ResolveCommit(prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrObjectNotFound)
	}
	ids, err := s.catalog[object.KindCommit].IDs(prefix)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d commits", ErrAmbiguousID, prefix, len(ids))
	}
}

// Metas returns the catalog entries of one kind, sorted by id.
func (s *Safe) Metas(kind object.Kind) ([]ObjectMeta, error) {
	var metas []ObjectMeta
	if err := s.catalog[kind].List(&metas); err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas, nil
}

// Reindex rebuilds the catalog from the object files on disk.
func (s *Safe) Reindex() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("reading object directory: %w", err)
	}

	batches := map[object.Kind][]storage.Entity{}
	for _, e := range entries {
		if e.IsDir() || !utils.IsHash(e.Name()) {
			continue
		}
		meta, err := s.metaFromFile(e.Name())
		if err != nil {
			return 0, err
		}
		kind := object.KindBlob
		if meta.Kind == object.KindCommit.String() {
			kind = object.KindCommit
		}
		batches[kind] = append(batches[kind], meta)
	}

	n := 0
	for kind, batch := range batches {
		if err := s.catalog[kind].PutBatch(batch); err != nil {
			return n, fmt.Errorf("writing %s catalog: %w", kind, err)
		}
		n += len(batch)
	}
	return n, nil
}

// metaFromFile builds the catalog entry for an object file already on disk.
func (s *Safe) metaFromFile(id string) (*ObjectMeta, error) {
	path := s.objectPath(id)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", id, err)
	}
	envelope, err := s.cm.decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	obj, err := object.Decode(envelope)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &ObjectMeta{
		ID:         id,
		Kind:       obj.Kind().String(),
		Size:       int64(len(envelope) - 1),
		Compressed: isCompressed(raw),
		CreatedAt:  info.ModTime().UTC(),
	}, nil
}

func (s *Safe) ensureCatalog() error {
	ids, err := s.Commits()
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	if len(ids) > 0 {
		return nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("reading object directory: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	n, err := s.Reindex()
	if err != nil {
		return fmt.Errorf("rebuilding catalog: %w", err)
	}
	s.logger.Warn("rebuilt object catalog from object files", zap.Int("objects", n))
	return nil
}

func (s *Safe) readFile(id string) (object.Object, error) {
	raw, err := os.ReadFile(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
		return nil, fmt.Errorf("reading object %s: %w", id, err)
	}

	envelope, err := s.cm.decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	obj, err := object.Decode(envelope)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}
	return obj, nil
}

func (s *Safe) objectPath(id string) string {
	return filepath.Join(s.root, id)
}
