package site

import (
	"sort"
	"strings"
)

// Tags emitted without a closing tag. Deliberately only these two, not the
// full HTML void element set: widening the list changes rendered output.
var noClosingTag = map[string]bool{
	"link": true,
	"meta": true,
}

// RenderHeadTag formats one head tag as raw HTML. Attributes render in
// authored order as ` name="value"` pairs with no escaping; values are
// trusted site configuration. Tags outside the no-closing list always get
// a closing tag, even with empty inner content.
func RenderHeadTag(t HeadTag) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(t.Tag)
	for _, a := range t.Attrs {
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString("=\"")
		b.WriteString(a.Value)
		b.WriteString("\"")
	}
	b.WriteString(">")
	if noClosingTag[t.Tag] {
		return b.String()
	}
	b.WriteString(t.InnerHTML)
	b.WriteString("</")
	b.WriteString(t.Tag)
	b.WriteString(">")
	return b.String()
}

// RenderPageMeta formats per-page meta entries as concatenated <meta> tags
// with no separator and no closing tags. Attributes within one entry render
// in sorted name order so output is deterministic.
func RenderPageMeta(entries []map[string]string) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, entry := range entries {
		names := make([]string, 0, len(entry))
		for name := range entry {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("<meta")
		for _, name := range names {
			b.WriteString(" ")
			b.WriteString(name)
			b.WriteString("=\"")
			b.WriteString(entry[name])
			b.WriteString("\"")
		}
		b.WriteString(">")
	}
	return b.String()
}

// RenderUserHeadTags renders the configured head tags joined by a newline
// and two-space indent. Computed once per build; identical on every page.
func RenderUserHeadTags(tags []HeadTag) string {
	if len(tags) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(tags))
	for _, t := range tags {
		rendered = append(rendered, RenderHeadTag(t))
	}
	return strings.Join(rendered, "\n  ")
}
