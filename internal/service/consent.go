package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/templui/twinboard/internal/markdown"
	"github.com/templui/twinboard/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrConsentUnavailable = errors.New("consent document unavailable")

type consentMeta struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// ConsentService serves the consent document rendered from content/consent.md.
type ConsentService struct {
	path   string
	parser *markdown.Parser

	mu      sync.Mutex
	doc     *model.ConsentDocument
	modTime time.Time
}

func NewConsentService(contentDir string) *ConsentService {
	return &ConsentService{
		path:   filepath.Join(contentDir, "consent.md"),
		parser: markdown.NewParser(),
	}
}

// Current returns the consent document, re-rendering it when the file changed.
func (s *ConsentService) Current() (model.ConsentDocument, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return model.ConsentDocument{}, fmt.Errorf("%w: %w", ErrConsentUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil && info.ModTime().Equal(s.modTime) {
		return *s.doc, nil
	}

	doc, err := s.load(info)
	if err != nil {
		return model.ConsentDocument{}, err
	}
	s.doc = doc
	s.modTime = info.ModTime()
	return *doc, nil
}

func (s *ConsentService) load(info os.FileInfo) (*model.ConsentDocument, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read consent: %w", err)
	}

	var meta consentMeta
	html, err := s.parser.ParseWithFrontmatter(content, &meta)
	if err != nil {
		return nil, fmt.Errorf("failed to parse consent: %w", err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = cases.Title(language.English).String("digital twin consent")
	}

	// Without an explicit version the file date identifies the revision
	version := strings.TrimSpace(meta.Version)
	if version == "" {
		version = info.ModTime().UTC().Format("2006-01-02")
	}

	return &model.ConsentDocument{
		Version: version,
		Title:   title,
		HTML:    string(html),
	}, nil
}
