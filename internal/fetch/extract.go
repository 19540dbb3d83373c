package fetch

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoText is returned when a page has no visible article text
var ErrNoText = errors.New("no article text found")

// Article is the readable part of a news page
type Article struct {
	Title     string
	Text      string
	Author    string
	Published string
}

// skipped elements never contribute visible text
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Form:     true,
	atom.Button:   true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Head:     true,
}

// block elements end a line of text
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Blockquote: true, atom.Br: true, atom.Tr: true, atom.Figcaption: true,
	atom.Pre: true, atom.Main: true,
}

// ExtractArticle parses an HTML page and returns its title, metadata and
// visible text. Text comes from <article> when present, then <main>, then
// the whole <body>.
func ExtractArticle(page string) (*Article, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	a := &Article{
		Title:     metaContent(doc, "og:title"),
		Author:    metaContent(doc, "author"),
		Published: metaContent(doc, "article:published_time"),
	}
	if a.Title == "" {
		if t := findFirst(doc, atom.Title); t != nil {
			a.Title = collapse(textOf(t))
		}
	}
	if a.Title == "" {
		if h := findFirst(doc, atom.H1); h != nil {
			a.Title = collapse(textOf(h))
		}
	}

	root := findFirst(doc, atom.Article)
	if root == nil {
		root = findFirst(doc, atom.Main)
	}
	if root == nil {
		root = findFirst(doc, atom.Body)
	}
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	visibleText(root, &sb)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	a.Text = strings.Join(lines, "\n")

	if a.Text == "" {
		return a, ErrNoText
	}
	return a, nil
}

func visibleText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipped[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}

	isBlock := n.Type == html.ElementNode && block[n.DataAtom]
	if isBlock {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, sb)
	}
	if isBlock {
		sb.WriteByte('\n')
	}
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// metaContent returns the content of <meta name=key> or <meta property=key>
func metaContent(n *html.Node, key string) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
		var name, content string
		for _, attr := range n.Attr {
			switch strings.ToLower(attr.Key) {
			case "name", "property":
				name = attr.Val
			case "content":
				content = attr.Val
			}
		}
		if strings.EqualFold(name, key) {
			return strings.TrimSpace(content)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := metaContent(c, key); v != "" {
			return v
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
