// Package prompts holds the LLM prompt templates for suggestions and revisions.
// Templates are embedded JSON files mapping a key to text with {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// Prompt files.
const (
	SuggestionFile = "suggestion.json"
	RevisionFile   = "revision.json"
)

var placeholderPattern = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// Template is one prompt together with the placeholders it expects.
type Template struct {
	File         string
	Key          string
	Text         string
	Placeholders []string
}

var (
	registry     map[string]map[string]*Template
	registryErr  error
	registryOnce sync.Once
)

// Load returns the template stored under key in file.
func Load(file, key string) (*Template, error) {
	registryOnce.Do(func() { registry, registryErr = parseAll(promptFiles) })
	if registryErr != nil {
		return nil, registryErr
	}
	templates, ok := registry[file]
	if !ok {
		return nil, fmt.Errorf("failed to read prompt file %s: no such file", file)
	}
	tmpl, ok := templates[key]
	if !ok {
		return nil, fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return tmpl, nil
}

// Render loads a template and fills it from vars.
func Render(file, key string, vars map[string]string) (string, error) {
	tmpl, err := Load(file, key)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}

// Render substitutes every placeholder. A placeholder without a value is an
// error so that a prompt never reaches the model with a literal {{.Name}}.
func (t *Template) Render(vars map[string]string) (string, error) {
	var missing []string
	pairs := make([]string, 0, len(t.Placeholders)*2)
	for _, name := range t.Placeholders {
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		pairs = append(pairs, "{{."+name+"}}", value)
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s/%s: missing values for %s", t.File, t.Key, strings.Join(missing, ", "))
	}
	return strings.NewReplacer(pairs...).Replace(t.Text), nil
}

// Keys lists the templates defined in file, sorted.
func Keys(file string) []string {
	registryOnce.Do(func() { registry, registryErr = parseAll(promptFiles) })
	keys := make([]string, 0, len(registry[file]))
	for key := range registry[file] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func parseAll(fsys fs.FS) (map[string]map[string]*Template, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]*Template, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var texts map[string]string
		if err := json.Unmarshal(data, &texts); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		templates := make(map[string]*Template, len(texts))
		for key, text := range texts {
			templates[key] = &Template{File: name, Key: key, Text: text, Placeholders: placeholders(text)}
		}
		out[name] = templates
	}
	return out, nil
}

func placeholders(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
