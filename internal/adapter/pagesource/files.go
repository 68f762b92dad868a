// Package pagesource loads extracted documentation pages from disk. Each
// page file is a JSON object {url, title, text, metadata}; crawling and HTML
// extraction happen upstream of this boundary.
package pagesource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"docrag/internal/domain"
)

// FileSource walks a directory for page files matching include globs.
type FileSource struct {
	root     string
	includes []string
	excludes []string
	log      *logrus.Logger
}

func NewFileSource(root string, includes, excludes []string, log *logrus.Logger) *FileSource {
	if len(includes) == 0 {
		includes = []string{"**/*.json"}
	}
	if log == nil {
		log = logrus.New()
	}
	return &FileSource{
		root:     root,
		includes: includes,
		excludes: excludes,
		log:      log,
	}
}

// Pages loads every matching page file. Files that fail to parse or lack a
// URL are logged and skipped; one bad file never aborts the batch.
func (s *FileSource) Pages() ([]domain.Page, error) {
	paths, err := s.walk()
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}

	pages := make([]domain.Page, 0, len(paths))
	for _, path := range paths {
		page, err := loadPage(path)
		if err != nil {
			s.log.WithError(err).WithField("path", path).Warn("skipping page file")
			continue
		}
		pages = append(pages, page)
	}

	return pages, nil
}

func (s *FileSource) walk() ([]string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if s.matchesAny(s.excludes, relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if s.matchesAny(s.includes, relPath) && !s.matchesAny(s.excludes, relPath) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

func (s *FileSource) matchesAny(patterns []string, relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

func loadPage(path string) (domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Page{}, fmt.Errorf("failed to read: %w", err)
	}

	var page domain.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return domain.Page{}, fmt.Errorf("failed to parse: %w", err)
	}

	if page.URL == "" {
		return domain.Page{}, fmt.Errorf("page has no url")
	}
	if page.Text == "" {
		return domain.Page{}, fmt.Errorf("page has no text")
	}
	if page.Title == "" {
		page.Title = "No Title"
	}

	return page, nil
}
