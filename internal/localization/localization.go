// Package localization holds the user-facing messages for error codes.
// Catalogs are JSON files named by language code (e.g. "en.json"); the
// built-in ones are embedded in the binary.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

// DefaultLanguage is used when a key is missing in the requested language.
const DefaultLanguage = "en"

//go:embed locales/*.json
var builtin embed.FS

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// Default returns a Localizer with the embedded catalogs.
func Default() *Localizer {
	l, err := NewLocalizer(builtin, "locales")
	if err != nil {
		panic(err) // embedded files are checked by the tests
	}
	return l
}

// NewLocalizer loads every *.json catalog found in dir of fsys.
func NewLocalizer(fsys fs.FS, dir string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	if value, ok := l.Lookup(lang, key); ok {
		return value
	}
	return key
}

// Lookup is GetString that reports whether the key exists.
func (l *Localizer) Lookup(lang, key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if value, ok := l.translations[lang][key]; ok {
		return value, true
	}
	if lang != DefaultLanguage {
		if value, ok := l.translations[DefaultLanguage][key]; ok {
			return value, true
		}
	}
	return "", false
}

// Languages lists the loaded catalogs.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	langs := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		langs = append(langs, lang)
	}
	return langs
}
