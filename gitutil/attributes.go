package gitutil

import (
	"bufio"
	"os"
	"strings"

	. "github.com/warpfork/go-errcat"

	hdx "github.com/BobKerns/houdini-expand"
)

/*
	A .gitattributes line is a pattern followed by attribute tokens:

		*.hda -text lockable filter=hda diff=hda merge=hda

	Each token is one of three states: "attr" sets it, "-attr" unsets it,
	"attr=value" gives it a value.  An attribute a line does not mention is
	unspecified.  The model here preserves pattern and attribute order so a
	load-edit-save cycle does not reshuffle the operator's file.
*/

type AttributeState int

const (
	Unspecified AttributeState = iota
	AttrSet
	AttrUnset
	AttrValued
)

type Attribute struct {
	Name  string
	State AttributeState
	Value string // meaningful only when State == AttrValued
}

// ParseAttribute parses one token ("attr", "-attr", or "attr=value").
func ParseAttribute(token string) Attribute {
	switch {
	case strings.HasPrefix(token, "-"):
		return Attribute{Name: token[1:], State: AttrUnset}
	case strings.Contains(token, "="):
		name, value, _ := strings.Cut(token, "=")
		return Attribute{Name: name, State: AttrValued, Value: value}
	default:
		return Attribute{Name: token, State: AttrSet}
	}
}

func (a Attribute) String() string {
	switch a.State {
	case AttrUnset:
		return "-" + a.Name
	case AttrValued:
		return a.Name + "=" + a.Value
	default:
		return a.Name
	}
}

// AttributeSet is the attributes of one pattern line, in declaration order.
type AttributeSet struct {
	order []string
	attrs map[string]Attribute
}

func NewAttributeSet() *AttributeSet {
	return &AttributeSet{attrs: map[string]Attribute{}}
}

// ParseAttributeSet parses the token list of one line (the part after the
// pattern).
func ParseAttributeSet(line string) *AttributeSet {
	s := NewAttributeSet()
	for _, token := range strings.Fields(line) {
		s.put(ParseAttribute(token))
	}
	return s
}

func (s *AttributeSet) put(a Attribute) {
	if _, seen := s.attrs[a.Name]; !seen {
		s.order = append(s.order, a.Name)
	}
	s.attrs[a.Name] = a
}

// Get returns the attribute, or an Unspecified one if the set does not
// mention the name.
func (s *AttributeSet) Get(name string) Attribute {
	if a, ok := s.attrs[name]; ok {
		return a
	}
	return Attribute{Name: name, State: Unspecified}
}

// Set folds tokens into the set, later tokens winning over earlier ones.
func (s *AttributeSet) Set(tokens ...string) {
	for _, token := range tokens {
		s.put(ParseAttribute(token))
	}
}

func (s *AttributeSet) Len() int { return len(s.order) }

func (s *AttributeSet) String() string {
	parts := make([]string, 0, len(s.order))
	for _, name := range s.order {
		parts = append(parts, s.attrs[name].String())
	}
	return strings.Join(parts, " ")
}

// AttributesFile is a parsed .gitattributes file, keyed by pattern.
type AttributesFile struct {
	Path     string
	order    []string
	patterns map[string]*AttributeSet
}

// LoadAttributes parses the file at pth.  A missing file is an empty model,
// not an error; Save will create it.
func LoadAttributes(pth string) (*AttributesFile, error) {
	af := &AttributesFile{Path: pth, patterns: map[string]*AttributeSet{}}
	f, err := os.Open(pth)
	if os.IsNotExist(err) {
		return af, nil
	}
	if err != nil {
		return nil, Errorf(hdx.ErrGit, "reading %s: %s", pth, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		pattern, rest, found := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !found || strings.HasPrefix(pattern, "#") {
			continue
		}
		af.Pattern(pattern).Set(strings.Fields(rest)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, Errorf(hdx.ErrGit, "reading %s: %s", pth, err)
	}
	return af, nil
}

// Pattern returns the attribute set for a pattern, creating an empty one if
// the file does not mention it yet.
func (af *AttributesFile) Pattern(pattern string) *AttributeSet {
	if s, ok := af.patterns[pattern]; ok {
		return s
	}
	s := NewAttributeSet()
	af.patterns[pattern] = s
	af.order = append(af.order, pattern)
	return s
}

// Has reports whether the pattern carries any attributes.
func (af *AttributesFile) Has(pattern string) bool {
	s, ok := af.patterns[pattern]
	return ok && s.Len() > 0
}

// Patterns returns the patterns in file order.
func (af *AttributesFile) Patterns() []string {
	return append([]string(nil), af.order...)
}

// Save writes the model back.  Patterns with no attributes left are
// dropped.
func (af *AttributesFile) Save() error {
	var sb strings.Builder
	for _, pattern := range af.order {
		if s := af.patterns[pattern]; s.Len() > 0 {
			sb.WriteString(pattern)
			sb.WriteString(" ")
			sb.WriteString(s.String())
			sb.WriteString("\n")
		}
	}
	if err := os.WriteFile(af.Path, []byte(sb.String()), 0644); err != nil {
		return Errorf(hdx.ErrGit, "writing %s: %s", af.Path, err)
	}
	return nil
}
