package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	dividerText = "____________________________________________________________"
	// contentMarker holds the place of the body until placeholders are substituted,
	// so braces inside the generated text are left alone.
	contentMarker = "<!--claudio-content-->"
)

var (
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxText      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>|<w:t\s*/>`)
	docxTextPart  = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)
)

// RenderDocx fills a Word template. Placeholders are replaced in the document,
// header and footer parts, and the paragraph holding {{content}} is replaced with
// the rendered blocks. A nil template uses the built-in layout.
func RenderDocx(template []byte, values map[string]string, blocks []Block) ([]byte, error) {
	if len(template) == 0 {
		template = DefaultDocxTemplate()
	}
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("report: open docx template: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	body := blocksXML(blocks)
	for _, f := range zr.File {
		data, errRead := readZipFile(f)
		if errRead != nil {
			return nil, fmt.Errorf("report: read %s: %w", f.Name, errRead)
		}
		if docxTextPart.MatchString(f.Name) {
			data = []byte(fillPart(string(data), values, body))
		}
		w, errCreate := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if errCreate != nil {
			return nil, errCreate
		}
		if _, err = w.Write(data); err != nil {
			return nil, err
		}
	}
	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("report: write docx: %w", err)
	}
	return buf.Bytes(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// fillPart merges runs of paragraphs that hold a placeholder, substitutes the
// placeholders and then swaps the content paragraph for body.
func fillPart(part string, values map[string]string, body string) string {
	part = docxParagraph.ReplaceAllStringFunc(part, func(p string) string {
		text := paragraphText(p)
		if !strings.Contains(text, "{{") {
			return p
		}
		if HasPlaceholder(text, ContentKey) {
			return contentMarker
		}
		return mergeRuns(p, text)
	})
	part = SubstituteFunc(part, values, xmlEscape)
	return strings.ReplaceAll(part, contentMarker, body)
}

func paragraphText(p string) string {
	var b strings.Builder
	for _, m := range docxText.FindAllStringSubmatch(p, -1) {
		b.WriteString(xmlUnescape(m[1]))
	}
	return b.String()
}

// mergeRuns moves the whole paragraph text into its first w:t element so that a
// placeholder split across runs by the editor becomes contiguous.
func mergeRuns(p, text string) string {
	firstDone := false
	return docxText.ReplaceAllStringFunc(p, func(string) string {
		if firstDone {
			return `<w:t></w:t>`
		}
		firstDone = true
		return `<w:t xml:space="preserve">` + xmlEscape(text) + `</w:t>`
	})
}

func blocksXML(blocks []Block) string {
	var b strings.Builder
	number := 0
	for _, block := range blocks {
		if block.Kind != Numbered {
			number = 0
		}
		switch block.Kind {
		case Heading1:
			b.WriteString(paragraphXML("Heading1", block.Text))
		case Heading2:
			b.WriteString(paragraphXML("Heading2", block.Text))
		case Heading3:
			b.WriteString(paragraphXML("Heading3", block.Text))
		case Bullet:
			b.WriteString(paragraphXML("ListBullet", "• "+block.Text))
		case Numbered:
			number++
			b.WriteString(paragraphXML("ListNumber", strconv.Itoa(number)+". "+block.Text))
		case Divider:
			b.WriteString(paragraphXML("", dividerText))
		default:
			b.WriteString(paragraphXML("", block.Text))
		}
	}
	return b.String()
}

func paragraphXML(style, text string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	if style != "" {
		b.WriteString(`<w:pPr><w:pStyle w:val="` + style + `"/></w:pPr>`)
	}
	b.WriteString(`<w:r><w:t xml:space="preserve">`)
	b.WriteString(xmlEscape(text))
	b.WriteString("</w:t></w:r></w:p>")
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

var xmlUnescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&#39;", "'", "&#34;", `"`, "&amp;", "&")

func xmlUnescape(s string) string { return xmlUnescaper.Replace(s) }

// DocxText returns the visible text of a rendered document part, one paragraph per line.
func DocxText(doc []byte, part string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != part {
			continue
		}
		data, errRead := readZipFile(f)
		if errRead != nil {
			return "", errRead
		}
		paragraphs := docxParagraph.FindAllString(string(data), -1)
		lines := make([]string, 0, len(paragraphs))
		for _, p := range paragraphs {
			lines = append(lines, paragraphText(p))
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("report: part %s not found", part)
}
