package generator

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// StopToken ends every completion.
const StopToken = "<END>"

const (
	systemHeader    = "### SYSTEM ###"
	userHeader      = "### USER ###"
	assistantHeader = "### ASSISTANT ###"
)

// Prompt is a system/user message pair rendered in a plain-text layout that
// both chat and raw-completion backends understand.
type Prompt struct {
	System string
	User   string
}

// String renders the prompt for raw-completion backends.
func (p Prompt) String() string {
	var b strings.Builder
	b.WriteString(systemHeader + "\n")
	b.WriteString(strings.TrimSpace(p.System) + "\n")
	b.WriteString(userHeader + "\n")
	b.WriteString(strings.TrimSpace(p.User) + "\n")
	b.WriteString(assistantHeader + "\n")
	return b.String()
}

// ParsePrompt splits a rendered prompt back into its messages. Text without
// headers is treated as a user message.
func ParsePrompt(s string) Prompt {
	si := strings.Index(s, systemHeader)
	ui := strings.Index(s, userHeader)
	if si < 0 || ui < 0 || ui < si {
		return Prompt{User: strings.TrimSpace(s)}
	}

	user := s[ui+len(userHeader):]
	if ai := strings.Index(user, assistantHeader); ai >= 0 {
		user = user[:ai]
	}
	return Prompt{
		System: strings.TrimSpace(s[si+len(systemHeader) : ui]),
		User:   strings.TrimSpace(user),
	}
}

// Clean reduces a raw completion to a single plain-text line: it cuts at the
// stop token, drops markdown and speaker prefixes, and keeps the first
// non-empty line.
func Clean(raw string) string {
	if i := strings.Index(raw, StopToken); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(raw, assistantHeader, "")

	for _, line := range strings.Split(raw, "\n") {
		line = PlainText(strings.TrimSpace(line))
		for _, prefix := range []string{"Assistant:", "NPC:", "[NPC]:"} {
			line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
		line = strings.Trim(line, "\"“”' ")
		if line != "" {
			return line
		}
	}
	return ""
}

// PlainText strips markdown formatting from s using goldmark. Braces are
// kept so hook tokens survive.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "*_`#[>~") {
		return s
	}

	reader := text.NewReader([]byte(s))
	doc := goldmark.New().Parser().Parse(reader)

	var b strings.Builder
	walkText(doc, reader.Source(), &b)
	return strings.TrimSpace(b.String())
}

func walkText(node ast.Node, source []byte, b *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteByte(' ')
		}
		return
	case *ast.String:
		b.Write(n.Value)
		return
	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(source))
			}
		}
		return
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkText(c, source, b)
	}
}
