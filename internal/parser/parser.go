// Package parser turns markdown documents into structured sections
// ready for chunking. YAML frontmatter supplies document metadata and
// degrades gracefully when malformed.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const frontmatterDelimiter = "---"

// Parser parses markdown into domain documents. Safe for concurrent use.
type Parser struct {
	md goldmark.Markdown
}

func New() *Parser {
	return &Parser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Parse builds a Document from raw markdown. Malformed frontmatter is
// skipped, not fatal. It fails only when the result would be unusable:
// no title and no headings at all.
func (p *Parser) Parse(source string, content []byte) (domain.Document, error) {
	meta, body := splitFrontmatter(content)

	doc := domain.Document{
		Source:      source,
		Title:       meta.Title,
		Description: meta.Description,
		Keywords:    meta.Keywords,
	}

	root := p.md.Parser().Parse(text.NewReader(body))

	var (
		sections []domain.Section
		current  *domain.Section
		path     []string
	)

	ensureSection := func() *domain.Section {
		if current == nil {
			sections = append(sections, domain.Section{})
			current = &sections[len(sections)-1]
		}
		return current
	}

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			heading := nodeText(node, body)
			if heading == "" {
				return ast.WalkSkipChildren, nil
			}

			if node.Level <= len(path) {
				path = path[:node.Level-1]
			}
			path = append(path, heading)

			sections = append(sections, domain.Section{
				HeadingPath: append([]string(nil), path...),
				Anchor:      slugify(heading),
			})
			current = &sections[len(sections)-1]

			if doc.Title == "" && node.Level == 1 {
				doc.Title = heading
			}

			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			code := nodeText(node, body)
			if code == "" {
				return ast.WalkSkipChildren, nil
			}

			sec := ensureSection()
			sec.Body = append(sec.Body, domain.Block{
				Kind: domain.BlockCode,
				Text: code,
				Lang: string(node.Language(body)),
			})

			return ast.WalkSkipChildren, nil

		case *ast.CodeBlock:
			code := nodeText(node, body)
			if code == "" {
				return ast.WalkSkipChildren, nil
			}

			sec := ensureSection()
			sec.Body = append(sec.Body, domain.Block{Kind: domain.BlockCode, Text: code})

			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.TextBlock:
			prose := nodeText(n, body)
			if prose == "" {
				return ast.WalkSkipChildren, nil
			}

			sec := ensureSection()
			sec.Body = append(sec.Body, domain.Block{Kind: domain.BlockProse, Text: prose})

			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: walk %s: %v", domain.ErrParse, source, err)
	}

	doc.Sections = sections

	if doc.Title == "" && !hasHeadings(sections) {
		return domain.Document{}, fmt.Errorf("%w: %s has no title and no headings", domain.ErrParse, source)
	}

	return doc, nil
}

type frontmatter struct {
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Keywords    keywordList `yaml:"keywords"`
}

// keywordList accepts both a YAML sequence and a comma separated scalar.
type keywordList []string

func (k *keywordList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*k = trimAll(items)
	case yaml.ScalarNode:
		*k = trimAll(strings.Split(value.Value, ","))
	default:
		return fmt.Errorf("keywords: unsupported YAML node kind %d", value.Kind)
	}

	return nil
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitFrontmatter peels a leading "---" delimited YAML block off the
// content. Any failure to locate or decode the block returns the
// original content untouched.
func splitFrontmatter(content []byte) (frontmatter, []byte) {
	var meta frontmatter

	trimmed := bytes.TrimLeft(content, "\uFEFF")
	if !bytes.HasPrefix(trimmed, []byte(frontmatterDelimiter+"\n")) &&
		!bytes.HasPrefix(trimmed, []byte(frontmatterDelimiter+"\r\n")) {
		return meta, content
	}

	rest := trimmed[len(frontmatterDelimiter):]
	end := findClosingDelimiter(rest)
	if end < 0 {
		return meta, content
	}

	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return frontmatter{}, content
	}

	body := rest[end:]
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = nil
	}

	return meta, body
}

func findClosingDelimiter(content []byte) int {
	offset := 0
	for offset < len(content) {
		lineEnd := bytes.IndexByte(content[offset:], '\n')
		if lineEnd < 0 {
			lineEnd = len(content) - offset
		}

		line := strings.TrimRight(string(content[offset:offset+lineEnd]), "\r")
		if line == frontmatterDelimiter {
			return offset
		}

		offset += lineEnd + 1
	}

	return -1
}

func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder

	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func hasHeadings(sections []domain.Section) bool {
	for _, sec := range sections {
		if len(sec.HeadingPath) > 0 {
			return true
		}
	}
	return false
}

// slugify builds a URL fragment for a heading in the common
// lowercase-and-hyphens style.
func slugify(heading string) string {
	var sb strings.Builder

	for _, r := range strings.ToLower(heading) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}

	return strings.Trim(sb.String(), "-")
}
