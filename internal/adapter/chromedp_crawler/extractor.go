package chromedp_crawler

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/crawlgraph/internal/entity"
)

const (
	maxTextLen = 80
	// Elements inside these never reach a snapshot.
	skipSelector = "script, style, noscript, template, svg"
)

var (
	interactiveTags = map[string]bool{"a": true, "button": true, "input": true, "select": true, "textarea": true, "summary": true}
	interactiveRole = map[string]bool{"button": true, "link": true, "tab": true, "menuitem": true, "checkbox": true, "switch": true}
)

// ExtractSnapshot parses rendered HTML into a snapshot. Timestamp, screenshot
// and scores are left to the caller.
func ExtractSnapshot(pageURL, htmlContent string) (*entity.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	snap := &entity.Snapshot{
		URL:      pageURL,
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Elements: []entity.Element{},
	}

	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if s.Closest(skipSelector).Length() > 0 {
			return
		}
		typ, _ := s.Attr("type")
		href, _ := s.Attr("href")
		snap.Elements = append(snap.Elements, entity.Element{
			Tag:         tag,
			Type:        strings.ToLower(typ),
			Selector:    selectorFor(s, tag),
			Text:        elementText(s, tag),
			Href:        href,
			Interactive: isInteractive(s, tag),
			Visible:     isVisible(s, typ),
		})
	})

	snap.AccessibilityScore = accessibilityScore(doc)
	return snap, nil
}

// selectorFor prefers an id, then a name attribute, then the element's
// nth-of-type path from body.
func selectorFor(s *goquery.Selection, tag string) string {
	if id, ok := s.Attr("id"); ok && strings.TrimSpace(id) != "" {
		return "#" + strings.TrimSpace(id)
	}
	if name, ok := s.Attr("name"); ok && strings.TrimSpace(name) != "" {
		return fmt.Sprintf("%s[name=%q]", tag, strings.TrimSpace(name))
	}

	var parts []string
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		t := goquery.NodeName(cur)
		if t == "body" || t == "html" || t == "" {
			break
		}
		idx := cur.PrevAllFiltered(t).Length() + 1
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", t, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "body > " + strings.Join(parts, " > ")
}

func elementText(s *goquery.Selection, tag string) string {
	var text string
	switch tag {
	case "input", "textarea", "select":
		text, _ = s.Attr("placeholder")
		if text == "" {
			text, _ = s.Attr("aria-label")
		}
	case "img":
		text, _ = s.Attr("alt")
	default:
		if s.Children().Length() == 0 || interactiveTags[tag] {
			text = s.Text()
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxTextLen {
		text = text[:maxTextLen]
	}
	return text
}

func isInteractive(s *goquery.Selection, tag string) bool {
	if interactiveTags[tag] {
		return true
	}
	if role, ok := s.Attr("role"); ok && interactiveRole[strings.ToLower(role)] {
		return true
	}
	if _, ok := s.Attr("onclick"); ok {
		return true
	}
	_, ok := s.Attr("tabindex")
	return ok
}

func isVisible(s *goquery.Selection, typ string) bool {
	if strings.EqualFold(typ, "hidden") {
		return false
	}
	if s.Closest("[hidden],[aria-hidden='true']").Length() > 0 {
		return false
	}
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		style, _ := cur.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// accessibilityScore is the share of images with alt text and form controls
// with an accessible name. Pages with neither score 1.
func accessibilityScore(doc *goquery.Document) float64 {
	total, ok := 0, 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		total++
		if alt, has := s.Attr("alt"); has && strings.TrimSpace(alt) != "" {
			ok++
		}
	})
	doc.Find("input:not([type=hidden]), select, textarea").Each(func(_ int, s *goquery.Selection) {
		total++
		if hasAccessibleName(doc, s) {
			ok++
		}
	})
	if total == 0 {
		return 1
	}
	return float64(ok) / float64(total)
}

func hasAccessibleName(doc *goquery.Document, s *goquery.Selection) bool {
	for _, attr := range []string{"aria-label", "aria-labelledby", "title"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	if s.Closest("label").Length() > 0 {
		return true
	}
	id, ok := s.Attr("id")
	if !ok || id == "" {
		return false
	}
	found := false
	doc.Find("label[for]").EachWithBreak(func(_ int, l *goquery.Selection) bool {
		if f, _ := l.Attr("for"); f == id {
			found = true
		}
		return !found
	})
	return found
}
