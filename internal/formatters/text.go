package formatters

import (
	"fmt"
	"strings"

	"resumesense/internal/view"
)

const barWidth = 20

// PageTextFormatter handles plain-text formatting for rendered pages
type PageTextFormatter struct{}

func (ptf *PageTextFormatter) Format(data any) (string, error) {
	page, err := asPage(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for i, section := range sections(page) {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("=== %s ===\n", strings.ToUpper(sectionTitles[section.ID])))
		walkShown(page, section, func(c *view.Container) {
			writeTextContainer(&output, page, c)
		})
	}

	return output.String(), nil
}

func (ptf *PageTextFormatter) SupportedType() string {
	return "Page"
}

func (ptf *PageTextFormatter) ContentType() string {
	return "text/plain; charset=utf-8"
}

// walkShown visits c and its shown descendants depth-first in markup order.
func walkShown(page *view.Page, c *view.Container, fn func(*view.Container)) {
	fn(c)
	for _, child := range page.Children(c.ID) {
		if child.Visible {
			walkShown(page, child, fn)
		}
	}
}

func writeTextContainer(output *strings.Builder, page *view.Page, c *view.Container) {
	if label := tabLabel(page, c.ID); label != "" {
		output.WriteString(fmt.Sprintf("\n%s:\n", label))
	}
	if c.Text != "" {
		output.WriteString(c.Text)
		output.WriteString("\n")
	}
	if c.Fill != nil {
		filled := int(c.Fill.Width) * barWidth / 100
		output.WriteString(fmt.Sprintf("[%s%s] %s\n",
			strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled), c.Fill.Tier))
	}
	writeTextNodes(output, c.Children, "")
}

func writeTextNodes(output *strings.Builder, nodes []*view.Node, indent string) {
	var chips []string
	prefix := ""
	flush := func() {
		if len(chips) > 0 {
			output.WriteString(indent + prefix + strings.Join(chips, ", ") + "\n")
		}
		chips = nil
		prefix = ""
	}

	for i, node := range nodes {
		switch node.Kind {
		case view.KindChip:
			chips = append(chips, node.Text)
		case view.KindLabel:
			flush()
			if i+1 < len(nodes) && nodes[i+1].Kind == view.KindChip {
				prefix = node.Text + " "
				continue
			}
			output.WriteString(indent + node.Text + "\n")
		case view.KindCard:
			flush()
			var card strings.Builder
			writeTextNodes(&card, node.Children, indent+"  ")
			output.WriteString(indent + "- " + strings.TrimPrefix(card.String(), indent+"  "))
		case view.KindBlock:
			flush()
			writeTextNodes(output, node.Children, indent)
		default:
			flush()
			if node.Text != "" {
				output.WriteString(indent + node.Text + "\n")
			}
			writeTextNodes(output, node.Children, indent)
		}
	}
	flush()
}
