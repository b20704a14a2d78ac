// Package knowledge builds and guards the vector index the retriever reads.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/pkg/wiki"
)

// Source is one plain-text article ready for indexing.
type Source struct {
	Title   string
	URL     string
	Content string
}

// ArticleFetcher resolves a query to an article.
type ArticleFetcher interface {
	Fetch(ctx context.Context, query string) (*wiki.Article, error)
}

const (
	titleHeader = "Title: "
	urlHeader   = "URL: "
)

// Loader reads sources from a data directory of .txt files. Files written
// by Save start with "Title:" and "URL:" header lines and a blank line;
// files without headers take their title from the file name.
type Loader struct {
	dataDir        string
	defaultArticle string
	fetcher        ArticleFetcher
	logger         logger.ILogger
}

// NewLoader creates a Loader reading dataDir. defaultArticle is fetched
// when the directory holds nothing.
func NewLoader(dataDir, defaultArticle string, fetcher ArticleFetcher, log logger.ILogger) *Loader {
	return &Loader{
		dataDir:        dataDir,
		defaultArticle: defaultArticle,
		fetcher:        fetcher,
		logger:         log,
	}
}

// Load returns every non-empty .txt source in name order. An empty
// directory triggers a fetch of the default article, which is saved first.
func (l *Loader) Load(ctx context.Context) ([]Source, error) {
	sources, err := l.readDir()
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		return sources, nil
	}

	if l.fetcher == nil || l.defaultArticle == "" {
		return nil, fmt.Errorf("no sources in %s and no default article configured", l.dataDir)
	}

	l.logger.Info("BOOTSTRAP", "Data directory empty, fetching default article", map[string]interface{}{
		"dir":     l.dataDir,
		"article": l.defaultArticle,
	})
	src, err := l.Fetch(ctx, l.defaultArticle)
	if err != nil {
		return nil, err
	}
	return []Source{src}, nil
}

// Fetch resolves query on Wikipedia and saves the article to the data directory.
func (l *Loader) Fetch(ctx context.Context, query string) (Source, error) {
	if l.fetcher == nil {
		return Source{}, fmt.Errorf("no article fetcher configured")
	}
	article, err := l.fetcher.Fetch(ctx, query)
	if err != nil {
		return Source{}, fmt.Errorf("fetch article %q: %w", query, err)
	}

	src := Source{Title: article.Title, URL: article.URL, Content: article.Content}
	path, err := l.Save(src)
	if err != nil {
		// The article is still usable for this build.
		l.logger.Warn("BOOTSTRAP", "Could not save fetched article", map[string]interface{}{
			"title": src.Title,
			"error": err,
		})
	} else {
		l.logger.Info("BOOTSTRAP", "Saved article", map[string]interface{}{"title": src.Title, "path": path})
	}
	return src, nil
}

// Save writes src into the data directory and returns the file path.
func (l *Loader) Save(src Source) (string, error) {
	if err := os.MkdirAll(l.dataDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(l.dataDir, wiki.SanitizeFilename(src.Title)+".txt")
	var sb strings.Builder
	sb.WriteString(titleHeader + src.Title + "\n")
	if src.URL != "" {
		sb.WriteString(urlHeader + src.URL + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(src.Content)
	sb.WriteString("\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (l *Loader) readDir() ([]Source, error) {
	paths, err := filepath.Glob(filepath.Join(l.dataDir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var sources []Source
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		src := parseSource(string(raw))
		if src.Title == "" {
			src.Title = strings.TrimSuffix(filepath.Base(path), ".txt")
		}
		if strings.TrimSpace(src.Content) == "" {
			l.logger.Warn("BOOTSTRAP", "Skipping empty source file", map[string]interface{}{"path": path})
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func parseSource(raw string) Source {
	var src Source
	if !strings.HasPrefix(raw, titleHeader) {
		src.Content = strings.TrimSpace(raw)
		return src
	}

	rest := raw
	for strings.HasPrefix(rest, titleHeader) || strings.HasPrefix(rest, urlHeader) {
		line, tail, _ := strings.Cut(rest, "\n")
		if v, ok := strings.CutPrefix(line, titleHeader); ok {
			src.Title = strings.TrimSpace(v)
		} else {
			src.URL = strings.TrimSpace(strings.TrimPrefix(line, urlHeader))
		}
		rest = tail
	}
	src.Content = strings.TrimSpace(rest)
	return src
}
