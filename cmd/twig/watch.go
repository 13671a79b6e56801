// cmd/twig/watch.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"twig/internal/errors"
	"twig/internal/ignore"
	"twig/internal/watch"
	"twig/internal/workspace"
	"twig/shared/utils"

	"go.uber.org/zap"
)

// Metadata entries whose changes alter status. Everything else under the
// metadata directory is churn from the command itself.
var watchedMeta = []string{"HEAD", "index", "refs"}

// watchStatus prints status, then again after every change to the working
// tree or to the staging and ref files, until interrupted. The repository is
// opened per render so other twig commands can run meanwhile.
func watchStatus(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		return errors.StorageError("getting current directory", err)
	}
	root, err := workspace.FindRoot(cwd)
	if stderrors.Is(err, workspace.ErrRootNotFound) {
		return errors.UserError("Not in an initialized twig directory.", nil)
	}
	if err != nil {
		return errors.StorageError("locating repository", err)
	}

	matcher, err := ignore.Load(filepath.Join(root, ignore.FileName))
	if err != nil {
		return errors.StorageError("loading ignore rules", err)
	}
	work := workspace.NewLocalWorkspace(root, matcher)

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	logger, err := newLogger(root, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	w, err := watch.New(watch.Options{
		Root: root,
		Ignored: func(rel string, isDir bool) bool {
			if utils.Under(rel, workspace.RepoDirName) {
				return !watchedMetaPath(rel)
			}
			return work.Ignored(rel, isDir)
		},
		Logger: logger.Named("watch"),
	})
	if err != nil {
		return errors.StorageError("watching working tree", err)
	}
	defer w.Close()

	render := func() {
		fmt.Print("\033[H\033[2J")
		if err := runWithRepo(printStatus); err != nil {
			printError(err)
		}
	}

	render()
	return w.Run(ctx, func(paths []string) {
		logger.Debug("working tree changed", zap.Strings("paths", paths))
		render()
	})
}

func watchedMetaPath(rel string) bool {
	if rel == workspace.RepoDirName {
		return true
	}
	for _, name := range watchedMeta {
		if utils.Under(rel, workspace.RepoDirName+"/"+name) {
			return true
		}
	}
	return false
}
