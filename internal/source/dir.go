package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/pathglob"
)

// DirIterator walks the working tree under Root. Excluded directories are
// pruned before they are entered.
type DirIterator struct {
	Root    string
	Exclude []string
}

func (d *DirIterator) Walk(ctx context.Context, fn func(*File) error) error {
	exclude := excludeSet(d.Exclude)

	err := filepath.WalkDir(d.Root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if p == d.Root {
				return err
			}
			logger.Log.Warnf("skipping '%s': %v", p, err)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == d.Root {
			return nil
		}

		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if pattern := pathglob.Match(rel, exclude, false); pattern != "" {
				logger.Log.Debugf("skipping directory '%s': '%s'", rel, pattern)
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if pattern := pathglob.Match(rel, exclude, false); pattern != "" {
			logger.Log.Debugf("skipping file '%s': '%s'", rel, pattern)
			return nil
		}
		return fn(NewFile(rel, p))
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("walk %s: %w", d.Root, err)
	}
	return err
}

// Files collects every file of the walk.
func (d *DirIterator) Files(ctx context.Context) ([]*File, error) {
	var files []*File
	err := d.Walk(ctx, func(f *File) error {
		files = append(files, f)
		return nil
	})
	return files, err
}
