// Package report turns generated audit text into structured blocks, tasks and
// Office documents (a Word report and an Excel task list).
package report

import (
	"regexp"
	"strings"
)

// BlockKind is the rendering style of one content line.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Heading1
	Heading2
	Heading3
	Bullet
	Numbered
	Divider
)

// Block is one rendered line of the audit body.
type Block struct {
	Kind BlockKind
	Text string
}

var (
	numberedPrefix = regexp.MustCompile(`^\d+\.\s*`)
	jsonFence      = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")
)

// ParseContent splits markdown-ish model output into blocks. Blank lines are
// skipped and a trailing fenced JSON task block is left out.
func ParseContent(text string) []Block {
	text = StripStructured(text)
	blocks := make([]Block, 0, 64)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, Block{Kind: Heading3, Text: cleanInline(line[4:])})
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, Block{Kind: Heading2, Text: cleanInline(line[3:])})
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, Block{Kind: Heading1, Text: cleanInline(line[2:])})
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			blocks = append(blocks, Block{Kind: Bullet, Text: cleanInline(line[2:])})
		case numberedPrefix.MatchString(line):
			blocks = append(blocks, Block{Kind: Numbered, Text: cleanInline(numberedPrefix.ReplaceAllString(line, ""))})
		case line == "---":
			blocks = append(blocks, Block{Kind: Divider})
		default:
			blocks = append(blocks, Block{Kind: Paragraph, Text: cleanInline(line)})
		}
	}
	return blocks
}

// StripStructured removes the last fenced JSON block when it ends the text.
func StripStructured(text string) string {
	locs := jsonFence.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	last := locs[len(locs)-1]
	if strings.TrimSpace(text[last[1]:]) != "" {
		return text
	}
	return strings.TrimRight(text[:last[0]], " \t\r\n")
}

func cleanInline(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}
