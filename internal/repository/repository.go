// internal/repository/repository.go
package repository

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"twig/internal/config"
	"twig/internal/errors"
	"twig/internal/history"
	"twig/internal/ignore"
	"twig/internal/object"
	"twig/internal/refs"
	"twig/internal/safe"
	"twig/internal/staging"
	"twig/internal/storage"
	"twig/internal/workspace"
	"twig/shared/utils"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	objectsDir  = "objects"
	dbDir       = "db"
	indexFile   = "index"
	historyFile = "operation_history"
	configFile  = "config.toml"
)

const (
	msgNotInitialized = "Not in an initialized twig directory."
	msgAlreadyExists  = "A twig version-control system already exists in the current directory."
)

// Repository is one working directory under version control. Every
// operation reads and writes state through it; nothing is global.
type Repository struct {
	Root string

	dir     string
	cfg     *config.Config
	logger  *zap.Logger
	db      *badger.DB
	objects *safe.Safe
	refs    *refs.Store
	index   *staging.Index
	history *history.History
	work    *workspace.LocalWorkspace
}

// Options supplies the ambient dependencies of a Repository. A nil Config is
// loaded from the repository's config file; a nil Logger discards records.
type Options struct {
	Config *config.Config
	Logger *zap.Logger
}

// MetaDir returns the metadata directory of the repository rooted at root.
func MetaDir(root string) string {
	return filepath.Join(root, workspace.RepoDirName)
}

// ConfigPath returns where the repository rooted at root keeps its config.
func ConfigPath(root string) string {
	return filepath.Join(MetaDir(root), configFile)
}

// Init creates a repository at root with the root commit on the default
// branch and opens it.
func Init(root string, opts Options) (*Repository, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	dir := MetaDir(root)
	if _, err := os.Stat(dir); err == nil {
		return nil, errors.UserError(msgAlreadyExists, nil)
	} else if !os.IsNotExist(err) {
		return nil, errors.StorageError("checking repository directory", err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	for _, d := range []string{dir, filepath.Join(dir, objectsDir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, errors.StorageError("creating repository directory", err)
		}
	}

	rulesPath := filepath.Join(root, ignore.FileName)
	if _, err := os.Stat(rulesPath); os.IsNotExist(err) {
		if err := os.WriteFile(rulesPath, []byte(ignore.DefaultRules), 0644); err != nil {
			os.RemoveAll(dir)
			return nil, errors.StorageError("writing ignore rules", err)
		}
	}

	r, err := open(root, cfg, opts.Logger)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if err := r.initState(); err != nil {
		r.Close()
		os.RemoveAll(dir)
		return nil, err
	}

	r.logger.Info("initialized repository",
		zap.String("root", root),
		zap.String("branch", cfg.DefaultBranch))
	return r, nil
}

func (r *Repository) initState() error {
	rootCommit := object.NewRootCommit()
	if _, err := r.objects.Put(rootCommit); err != nil {
		return errors.StorageError("storing root commit", err)
	}
	if err := r.refs.Init(r.cfg.DefaultBranch, rootCommit.ID()); err != nil {
		return errors.StorageError("creating refs", err)
	}
	if err := r.index.Save(); err != nil {
		return errors.StorageError("writing index", err)
	}
	if err := history.Init(filepath.Join(r.dir, historyFile)); err != nil {
		return errors.StorageError("writing operation history", err)
	}
	return nil
}

// Open opens the repository rooted at root.
func Open(root string, opts Options) (*Repository, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if info, err := os.Stat(MetaDir(root)); err != nil || !info.IsDir() {
		return nil, errors.UserError(msgNotInitialized, nil)
	}

	cfg := opts.Config
	if cfg == nil {
		if cfg, err = config.Load(ConfigPath(root)); err != nil {
			return nil, errors.UserError("Invalid configuration.", err.Error())
		}
	}
	return open(root, cfg, opts.Logger)
}

func open(root string, cfg *config.Config, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := MetaDir(root)

	db, err := storage.Open(filepath.Join(dir, dbDir), storage.Options{
		InMemory:           cfg.Catalog.InMemory,
		ValueLogFileSizeMB: cfg.Catalog.ValueLogFileSizeMB,
		MemTableSizeMB:     cfg.Catalog.MemTableSizeMB,
	})
	if err != nil {
		return nil, errors.StorageError("opening object catalog", err)
	}

	objects, err := safe.New(db, safe.Options{
		Root:      filepath.Join(dir, objectsDir),
		CacheSize: cfg.Store.CacheSize,
		Compression: safe.CompressionOptions{
			MinSize: cfg.Store.CompressMinSize,
			Level:   cfg.Store.CompressLevel,
		},
		Logger: logger.Named("safe"),
	})
	if err != nil {
		db.Close()
		return nil, errors.StorageError("opening object store", err)
	}

	r := &Repository{
		Root:    root,
		dir:     dir,
		cfg:     cfg,
		logger:  logger,
		db:      db,
		objects: objects,
		refs:    refs.New(dir),
	}

	fail := func(msg string, err error) (*Repository, error) {
		r.Close()
		return nil, errors.StorageError(msg, err)
	}

	if r.index, err = staging.Load(filepath.Join(dir, indexFile)); err != nil {
		return fail("loading index", err)
	}
	if r.history, err = history.Load(filepath.Join(dir, historyFile)); err != nil {
		return fail("loading operation history", err)
	}
	matcher, err := ignore.Load(filepath.Join(root, ignore.FileName))
	if err != nil {
		return fail("loading ignore rules", err)
	}
	r.work = workspace.NewLocalWorkspace(root, matcher)

	return r, nil
}

// Close releases the object store and catalog.
func (r *Repository) Close() error {
	r.objects.Close()
	if err := r.db.Close(); err != nil {
		return errors.StorageError("closing object catalog", err)
	}
	return nil
}

// Workspace exposes the working directory view used by the repository.
func (r *Repository) Workspace() *workspace.LocalWorkspace {
	return r.work
}

// CurrentBranch returns the active branch name.
func (r *Repository) CurrentBranch() (string, error) {
	branch, err := r.refs.Head()
	if err != nil {
		return "", errors.StorageError("reading HEAD", err)
	}
	return branch, nil
}

// head resolves HEAD to the active branch and its commit.
func (r *Repository) head() (string, *object.Commit, error) {
	branch, id, err := r.refs.HeadCommit()
	if err != nil {
		return "", nil, errors.StorageError("resolving HEAD", err)
	}
	c, err := r.commit(id)
	if err != nil {
		return "", nil, err
	}
	return branch, c, nil
}

func (r *Repository) commit(id string) (*object.Commit, error) {
	c, err := r.objects.Commit(id)
	if err != nil {
		return nil, errors.StorageError("reading commit "+utils.ShortID(id), err)
	}
	return c, nil
}

// blob returns the content of blob id, or nil for "".
func (r *Repository) blob(id string) ([]byte, error) {
	if id == "" {
		return nil, nil
	}
	b, err := r.objects.Blob(id)
	if err != nil {
		return nil, errors.StorageError("reading blob "+utils.ShortID(id), err)
	}
	return b.Content, nil
}

func (r *Repository) saveIndex() error {
	if err := r.index.Save(); err != nil {
		return errors.StorageError("writing index", err)
	}
	return nil
}

func (r *Repository) record(typ history.Type, params map[string]string, snap history.Snapshot) error {
	rec, err := r.history.Push(history.Record{Type: typ, Params: params, Snapshot: snap})
	if err != nil {
		return errors.StorageError("writing operation history", err)
	}
	r.logger.Debug("recorded operation", zap.String("id", rec.ID), zap.String("type", string(typ)))
	return nil
}

// resolveCommit expands a user supplied id or prefix through the catalog.
func (r *Repository) resolveCommit(prefix string) (string, error) {
	id, err := r.objects.ResolveCommit(prefix)
	switch {
	case err == nil:
		return id, nil
	case stderrors.Is(err, safe.ErrObjectNotFound):
		return "", errors.NotFound("No commit with that id exists.")
	case stderrors.Is(err, safe.ErrAmbiguousID):
		return "", errors.UserError("Commit id prefix is ambiguous.", prefix)
	default:
		return "", errors.StorageError("resolving commit id", err)
	}
}
