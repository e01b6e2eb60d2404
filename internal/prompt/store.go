// Package prompt loads named conversation templates from a directory of
// .txt files. The file stem is the template name; the body is a
// text/template with contact and conversation placeholders.
package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// Params are the values substituted into a template.
type Params struct {
	Name                string
	Company             string
	Email               string
	PhoneNumber         string
	AgentName           string
	ConversationHistory string
	UserInput           string
}

// builtinFallback is used when neither the named template nor "default"
// exists on disk. It keeps calls functional on an empty prompts directory.
const builtinFallback = `No prompt found. Please add a prompt file in the prompts directory.
PROSPECT INFORMATION:
- Name: {{.Name}}
- Company: {{.Company}}
- Email: {{.Email}}
- Phone: {{.PhoneNumber}}
`

// Store holds the parsed templates. Reload swaps the whole map, so renders
// concurrent with a reload see either the old or the new set.
type Store struct {
	dir string
	log *slog.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
	fallback  *template.Template
}

func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prompt: create dir %s: %w", dir, err)
	}
	s := &Store{
		dir:      dir,
		log:      log,
		fallback: template.Must(template.New("builtin").Parse(builtinFallback)),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every *.txt file in the directory. Empty and unparseable
// files are skipped with a warning; they never break existing templates of
// other names.
func (s *Store) Reload() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.txt"))
	if err != nil {
		return fmt.Errorf("prompt: glob %s: %w", s.dir, err)
	}

	templates := make(map[string]*template.Template, len(paths))
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".txt")
		body, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable prompt", "name", name, "err", err)
			continue
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			s.log.Warn("skipping empty prompt", "name", name)
			continue
		}
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			s.log.Warn("skipping unparseable prompt", "name", name, "err", err)
			continue
		}
		templates[name] = tmpl
	}

	s.mu.Lock()
	s.templates = templates
	s.mu.Unlock()
	s.log.Info("prompts loaded", "count", len(templates), "dir", s.dir)
	return nil
}

// Available lists loaded template names, sorted.
func (s *Store) Available() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a template of that name is loaded.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.templates[name]
	return ok
}

// Render resolves name -> "default" -> built-in literal and substitutes the
// params.
func (s *Store) Render(name string, p Params) (string, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[name]
	if !ok {
		tmpl, ok = s.templates["default"]
	}
	s.mu.RUnlock()
	if !ok {
		s.log.Warn("no prompt found, using built-in fallback", "name", name)
		tmpl = s.fallback
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, p); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
