package domain

import "strings"

// Document is a parsed source document: title plus ordered sections.
// Immutable once produced by the parser.
type Document struct {
	Source      string // origin identifier (path or URL)
	Title       string
	Description string
	Keywords    []string
	Sections    []Section
}

// Section is a titled region of a document. HeadingPath is the breadcrumb of
// enclosing headings, outermost first. Code blocks are carried alongside the
// body so the chunker can keep them atomic.
type Section struct {
	HeadingPath []string
	Anchor      string
	Body        []Block
}

// BlockKind distinguishes prose from fenced code inside a section body.
type BlockKind string

const (
	// BlockProse is a paragraph of running text.
	BlockProse BlockKind = "prose"
	// BlockCode is a fenced code block, never split across chunks.
	BlockCode BlockKind = "code"
)

// Block is one unit of section content in document order.
type Block struct {
	Kind BlockKind
	Text string
	Lang string // code fence language, empty for prose
}

// Heading returns the innermost heading of the section, or "" for preamble
// content before the first heading.
func (s *Section) Heading() string {
	if len(s.HeadingPath) == 0 {
		return ""
	}
	return s.HeadingPath[len(s.HeadingPath)-1]
}

// Breadcrumb renders the heading path as "A > B > C".
func (s *Section) Breadcrumb() string {
	return joinPath(s.HeadingPath)
}

func joinPath(path []string) string {
	return strings.Join(path, " > ")
}
