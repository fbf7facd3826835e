// Package content renders the static informational pages bundled under
// resources/: markdown documents and image galleries.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var ErrNotFound = errors.New("content: not found")

var validName = regexp.MustCompile(`^[a-z0-9_-]+$`)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
	".webp": true,
}

// Page is one rendered markdown document.
type Page struct {
	Name  string
	Title string
	HTML  template.HTML
}

// Store reads pages from a directory of .md files and lists images from a
// directory served under ImageURL.
type Store struct {
	pagesDir  string
	imagesDir string
	imageURL  string
	md        goldmark.Markdown
}

func NewStore(pagesDir, imagesDir, imageURL string) *Store {
	return &Store{
		pagesDir:  pagesDir,
		imagesDir: imagesDir,
		imageURL:  strings.TrimSuffix(imageURL, "/"),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Page renders <pagesDir>/<name>.md. The first level-one heading, if any,
// becomes the title.
func (s *Store) Page(name string) (*Page, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("%w: page %q", ErrNotFound, name)
	}

	src, err := os.ReadFile(filepath.Join(s.pagesDir, name+".md"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: page %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("content: read page %q: %w", name, err)
	}

	var buf bytes.Buffer
	if err := s.md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("content: render page %q: %w", name, err)
	}

	return &Page{
		Name:  name,
		Title: title(src),
		HTML:  template.HTML(buf.String()),
	}, nil
}

// Images returns the URLs of the images in <imagesDir>/<section>, sorted by
// file name. A missing section yields no images.
func (s *Store) Images(section string) ([]string, error) {
	if section != "" && !validName.MatchString(section) {
		return nil, fmt.Errorf("%w: section %q", ErrNotFound, section)
	}

	entries, err := os.ReadDir(filepath.Join(s.imagesDir, section))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("content: list images %q: %w", section, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	urls := make([]string, len(names))
	for i, n := range names {
		urls[i] = s.imageURL + "/" + path.Join(section, n)
	}
	return urls, nil
}

func title(src []byte) string {
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}
