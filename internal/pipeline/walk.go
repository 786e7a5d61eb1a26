package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// fileRef locates one message file inside the maildir tree. Folder is the
// path relative to the input root, slash-separated, without the file name.
type fileRef struct {
	Path   string
	Folder string
}

// walk lists every regular file under root in lexicographic path order.
// Files whose root-relative path appears in exclude are skipped and
// counted. An unreadable root or a failure during traversal is fatal; a
// run over a partial listing would silently produce a smaller dataset.
func walk(root string, exclude []string) (files []fileRef, excluded int, err error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat input root: %w", err)
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("input root %s is not a directory", root)
	}

	excludeSet := make(map[string]struct{}, len(exclude))
	for _, rel := range exclude {
		excludeSet[filepath.ToSlash(filepath.Clean(rel))] = struct{}{}
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := excludeSet[rel]; ok {
			excluded++
			return nil
		}
		files = append(files, fileRef{
			Path:   path,
			Folder: filepath.ToSlash(filepath.Dir(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk input tree: %w", err)
	}
	return files, excluded, nil
}
