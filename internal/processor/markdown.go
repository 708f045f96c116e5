package processor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ToMarkdown converts html into markdown. Scripts, styles and navigation
// chrome are dropped first.
func (cp *ContentProcessor) ToMarkdown(html string, preserveLinks bool) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, iframe, svg").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	var md strings.Builder
	cp.convertToMarkdown(body, &md, preserveLinks)
	return collapseBlankLines(md.String())
}

func (cp *ContentProcessor) convertToMarkdown(sel *goquery.Selection, md *strings.Builder, preserveLinks bool) {
	sel.Contents().Each(func(i int, s *goquery.Selection) {
		node := s.Get(0)
		if node.Type == 3 { // text
			if text := strings.TrimSpace(node.Data); text != "" {
				md.WriteString(text)
				md.WriteString(" ")
			}
			return
		}
		if node.Type != 1 {
			return
		}

		switch tag := strings.ToLower(node.Data); tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(tag[1] - '0')
			fmt.Fprintf(md, "\n\n%s %s\n\n", strings.Repeat("#", level), strings.TrimSpace(s.Text()))
		case "p":
			var p strings.Builder
			cp.convertToMarkdown(s, &p, preserveLinks)
			if text := strings.TrimSpace(p.String()); text != "" {
				fmt.Fprintf(md, "\n\n%s\n\n", text)
			}
		case "br":
			md.WriteString("\n")
		case "a":
			text := strings.TrimSpace(s.Text())
			href, ok := s.Attr("href")
			if preserveLinks && ok && href != "" {
				fmt.Fprintf(md, "[%s](%s) ", text, href)
			} else if text != "" {
				md.WriteString(text + " ")
			}
		case "strong", "b":
			fmt.Fprintf(md, "**%s** ", strings.TrimSpace(s.Text()))
		case "em", "i":
			fmt.Fprintf(md, "*%s* ", strings.TrimSpace(s.Text()))
		case "code":
			fmt.Fprintf(md, "`%s` ", s.Text())
		case "pre":
			fmt.Fprintf(md, "\n\n```\n%s\n```\n\n", s.Text())
		case "blockquote":
			md.WriteString("\n\n")
			for _, line := range strings.Split(s.Text(), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					fmt.Fprintf(md, "> %s\n", line)
				}
			}
			md.WriteString("\n")
		case "ul", "ol":
			md.WriteString("\n\n")
			cp.convertList(s, md, tag == "ol", 0)
		case "img":
			if src, ok := s.Attr("src"); ok {
				fmt.Fprintf(md, "\n\n![%s](%s)\n\n", s.AttrOr("alt", ""), src)
			}
		default:
			cp.convertToMarkdown(s, md, preserveLinks)
		}
	})
}

func (cp *ContentProcessor) convertList(sel *goquery.Selection, md *strings.Builder, ordered bool, depth int) {
	prefix := strings.Repeat("  ", depth)

	sel.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", i+1)
		}

		item := li.Clone()
		item.Find("ul, ol").Remove()
		fmt.Fprintf(md, "%s%s%s\n", prefix, marker, strings.Join(strings.Fields(item.Text()), " "))

		li.ChildrenFiltered("ul, ol").Each(func(_ int, nested *goquery.Selection) {
			cp.convertList(nested, md, nested.Is("ol"), depth+1)
		})
	})
}

// collapseBlankLines trims trailing spaces and keeps at most one blank line
// between blocks.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
