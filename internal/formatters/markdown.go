package formatters

import (
	"fmt"
	"regexp"
	"strings"

	"resumesense/internal/view"
)

// PageMarkdownFormatter handles markdown formatting for rendered pages
type PageMarkdownFormatter struct{}

func (pmf *PageMarkdownFormatter) Format(data any) (string, error) {
	page, err := asPage(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Resume Analysis\n\n")

	for _, section := range sections(page) {
		output.WriteString(fmt.Sprintf("## %s\n\n", sectionTitles[section.ID]))
		walkShown(page, section, func(c *view.Container) {
			writeMarkdownContainer(&output, page, c)
		})
	}

	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (pmf *PageMarkdownFormatter) SupportedType() string {
	return "Page"
}

func (pmf *PageMarkdownFormatter) ContentType() string {
	return "text/markdown; charset=utf-8"
}

func writeMarkdownContainer(output *strings.Builder, page *view.Page, c *view.Container) {
	if label := tabLabel(page, c.ID); label != "" {
		output.WriteString(fmt.Sprintf("### %s\n\n", label))
	}
	if c.Text != "" {
		if c.ID == view.IDError {
			output.WriteString(fmt.Sprintf("> %s\n\n", escapeMarkdown(c.Text)))
		} else {
			output.WriteString(fmt.Sprintf("**Score:** %s\n\n", escapeMarkdown(c.Text)))
		}
	}
	writeMarkdownNodes(output, c.Children)
}

func writeMarkdownNodes(output *strings.Builder, nodes []*view.Node) {
	var chips []string
	prefix := ""
	flush := func() {
		if len(chips) > 0 {
			output.WriteString(prefix + strings.Join(chips, " ") + "\n\n")
		}
		chips = nil
		prefix = ""
	}

	for i, node := range nodes {
		text := escapeMarkdown(node.Text)
		switch node.Kind {
		case view.KindChip:
			chips = append(chips, "`"+strings.ReplaceAll(node.Text, "`", "'")+"`")
			continue
		case view.KindLabel:
			flush()
			if i+1 < len(nodes) && nodes[i+1].Kind == view.KindChip {
				prefix = "*" + text + "* "
				continue
			}
			output.WriteString("*" + text + "*\n\n")
		case view.KindHeading:
			flush()
			output.WriteString("#### " + text + "\n\n")
		case view.KindStrong:
			flush()
			output.WriteString("**" + text + "**\n\n")
		case view.KindMeta:
			flush()
			if text != "" {
				output.WriteString("_" + text + "_\n\n")
			}
		case view.KindParagraph:
			flush()
			if text != "" {
				output.WriteString(text + "\n\n")
			}
		default:
			flush()
		}
		writeMarkdownNodes(output, node.Children)
	}
	flush()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"(", `\(`,
	")", `\)`,
	"#", `\#`,
	"+", `\+`,
	"-", `\-`,
	"=", `\=`,
	"!", `\!`,
	"|", `\|`,
	"<", "&lt;",
	">", "&gt;",
)

// orderedListMarker matches a line starting like "1. " but not a number like "82.5"
var orderedListMarker = regexp.MustCompile(`(?m)^(\s*\d+)(\.)(\s|$)`)

// escapeMarkdown keeps payload text from being read as markdown or inline HTML.
func escapeMarkdown(s string) string {
	return orderedListMarker.ReplaceAllString(markdownEscaper.Replace(s), `$1\$2$3`)
}
