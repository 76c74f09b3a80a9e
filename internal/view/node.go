// Package view holds the declarative view tree that results are rendered into.
//
// A Page is the server-side stand-in for the result markup: a fixed set of
// named containers, each with a visibility flag and a list of child nodes.
// Node text is always data; serializers are responsible for escaping it.
package view

import "strings"

// Kind identifies what a node represents in the markup
type Kind string

const (
	KindBlock     Kind = "block"
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindStrong    Kind = "strong"
	KindLabel     Kind = "label"
	KindChip      Kind = "chip"
	KindMeta      Kind = "meta"
	KindCard      Kind = "card"
)

// Node is an element in a container's content
type Node struct {
	Kind     Kind    `json:"kind"`
	Class    string  `json:"class,omitempty"`
	Text     string  `json:"text,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Block groups child nodes under an optional class.
func Block(class string, children ...*Node) *Node {
	return &Node{Kind: KindBlock, Class: class, Children: children}
}

// Card is a block rendered as a card (project, achievement).
func Card(class string, children ...*Node) *Node {
	return &Node{Kind: KindCard, Class: class, Children: children}
}

func Heading(text string) *Node {
	return &Node{Kind: KindHeading, Text: text}
}

func Paragraph(class, text string) *Node {
	return &Node{Kind: KindParagraph, Class: class, Text: text}
}

func Strong(text string) *Node {
	return &Node{Kind: KindStrong, Text: text}
}

func Label(text string) *Node {
	return &Node{Kind: KindLabel, Text: text}
}

func Chip(class, text string) *Node {
	return &Node{Kind: KindChip, Class: class, Text: text}
}

func Meta(text string) *Node {
	return &Node{Kind: KindMeta, Class: "card-meta", Text: text}
}

// Chips builds one chip per entry, preserving order.
func Chips(class string, entries []string) []*Node {
	nodes := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		nodes = append(nodes, Chip(class, entry))
	}
	return nodes
}

// TextContent returns the node's text followed by its descendants', one per line.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder) {
	if n == nil {
		return
	}
	if n.Text != "" {
		sb.WriteString(n.Text)
		sb.WriteByte('\n')
	}
	for _, child := range n.Children {
		child.writeText(sb)
	}
}

// Count returns the number of nodes of the given kind and class in the subtree.
// An empty class matches any class.
func (n *Node) Count(kind Kind, class string) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Kind == kind && (class == "" || n.Class == class) {
		count++
	}
	for _, child := range n.Children {
		count += child.Count(kind, class)
	}
	return count
}
