// Package persona holds the assistant's system prompt, the repetition notice
// and the patch rules applied to incoming messages.
package persona

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moti-app/moti-proxy/internal/guard"
)

// DefaultSystem is the built-in system prompt.
const DefaultSystem = "Sen Moti'sin. Türkçe konuş."

// DefaultNotice is the guard's built-in repetition notice.
const DefaultNotice = guard.DefaultNotice

// PatchRuleDefinition is a patch rule as written in the persona file.
type PatchRuleDefinition struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Op      string `yaml:"op"`
	Path    string `yaml:"path"`
	By      int    `yaml:"by"`
}

// Definition is the on-disk persona file layout.
type Definition struct {
	Name    string                `yaml:"name"`
	System  string                `yaml:"system"`
	Notice  string                `yaml:"repetition_notice"`
	Patches []PatchRuleDefinition `yaml:"patches"`
}

// PatchRule is a compiled patch rule.
type PatchRule struct {
	Name    string
	Pattern *regexp.Regexp
	Op      string
	Path    string
	By      int
}

// Patch is an instruction for the client to update its local state.
type Patch struct {
	Op   string `json:"op"`
	Path string `json:"path"`
	By   int    `json:"by"`
}

// Persona is a loaded, ready to use persona.
type Persona struct {
	Name   string
	System string
	Notice string
	Rules  []PatchRule
}

// Default returns the built-in persona.
func Default() *Persona {
	p, err := Compile(defaultDefinition())
	if err != nil {
		panic(fmt.Sprintf("persona: built-in definition invalid: %v", err))
	}
	return p
}

func defaultDefinition() Definition {
	return Definition{
		Name:   "moti",
		System: DefaultSystem,
		Notice: DefaultNotice,
		Patches: []PatchRuleDefinition{{
			Name:    "thanks",
			Pattern: `(?i)(teşekkür|tesekkur|sağ ?ol|sag ?ol|eyvallah|thank)`,
			Op:      "inc",
			Path:    "/stats/thanks",
			By:      1,
		}},
	}
}

// Load reads a persona file. An empty path returns the built-in persona. Fields
// missing from the file fall back to the built-in values.
func Load(path string) (*Persona, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a persona document.
func Parse(data []byte) (*Persona, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse persona: %w", err)
	}
	base := defaultDefinition()
	if strings.TrimSpace(def.Name) == "" {
		def.Name = base.Name
	}
	if strings.TrimSpace(def.System) == "" {
		def.System = base.System
	}
	if def.Notice == "" {
		def.Notice = base.Notice
	}
	if def.Patches == nil {
		def.Patches = base.Patches
	}
	return Compile(def)
}

// Compile validates a definition and compiles its patch patterns.
func Compile(def Definition) (*Persona, error) {
	rules := make([]PatchRule, 0, len(def.Patches))
	for _, rd := range def.Patches {
		if rd.Path == "" {
			return nil, fmt.Errorf("patch rule %q: path required", rd.Name)
		}
		re, err := regexp.Compile(rd.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %s: %w", rd.Name, err)
		}
		op := rd.Op
		if op == "" {
			op = "inc"
		}
		by := rd.By
		if by == 0 {
			by = 1
		}
		rules = append(rules, PatchRule{Name: rd.Name, Pattern: re, Op: op, Path: rd.Path, By: by})
	}
	return &Persona{
		Name:   def.Name,
		System: strings.TrimSpace(def.System),
		Notice: def.Notice,
		Rules:  rules,
	}, nil
}

// Patches returns the patches triggered by message, in rule order. The result
// is never nil so it encodes as an empty JSON array.
func (p *Persona) Patches(message string) []Patch {
	out := make([]Patch, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r.Pattern.MatchString(message) {
			out = append(out, Patch{Op: r.Op, Path: r.Path, By: r.By})
		}
	}
	return out
}
