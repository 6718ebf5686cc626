package persona

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSource loads persona documents from a directory of markdown files.
type FileSource struct {
	Root      string
	Parse     ParseFunc           // defaults to ParseFrontMatter
	Allowlist map[string]struct{} // optional filter on file base names
}

func (f FileSource) List(ctx context.Context) ([]Record, error) {
	root := f.Root
	if root == "" {
		return nil, errors.New("persona: file source root is empty")
	}
	parse := f.Parse
	if parse == nil {
		parse = ParseFrontMatter
	}
	var records []Record
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), ".md")
		if len(f.Allowlist) > 0 {
			if _, ok := f.Allowlist[name]; !ok {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rec, err := parse(name, path, data)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return records, nil
}
