// Package content turns raw note text into its derived fields: the tag set
// and the cross-linked HTML rendering.
package content

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/nzaccagnino/notesync/internal/model"
)

var (
	embedPattern = regexp.MustCompile(`\[\[embedded]]\(([^)\n]+)\)`)
	tagPattern   = regexp.MustCompile(`#(\w+)`)
	linkPattern  = regexp.MustCompile(`\[\[(.+?)]]`)
)

const brokenStyle = "color:red; font-weight:bold;"

type Link struct {
	Title  string
	Broken bool
}

// Pipeline derives tags and HTML for notes. It is safe for concurrent use.
type Pipeline struct {
	fileBaseURL string
	md          goldmark.Markdown
	policy      *bluemonday.Policy
}

// New returns a pipeline whose embedded images point at the file endpoint of
// the store at fileBaseURL (for example "http://localhost:5689").
func New(fileBaseURL string) *Pipeline {
	policy := bluemonday.UGCPolicy()
	policy.AllowURLSchemes("tag", "note")
	policy.AllowAttrs("class").OnElements("a")
	policy.RequireNoFollowOnLinks(false)

	return &Pipeline{
		fileBaseURL: strings.TrimRight(fileBaseURL, "/"),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		policy: policy,
	}
}

// Apply returns a copy of note with Tags and HTML derived from its content,
// validating wiki-links against known.
func (p *Pipeline) Apply(note model.Note, known []model.Note) model.Note {
	out := note.Clone()
	out.Tags = ExtractTags(note.Content)
	out.HTML = p.RenderNote(note.IDValue(), note.Content, known)
	return out
}

// RenderNote runs the four rendering steps in order: embeds, tags, markdown,
// wiki-links.
func (p *Pipeline) RenderNote(noteID int64, content string, known []model.Note) string {
	text := p.RewriteEmbeds(noteID, content)
	text = RewriteTags(text)
	return ResolveLinks(p.Render(text), known)
}

// RewriteEmbeds replaces [[embedded]](name) tokens with markdown images that
// load the attachment from the file store.
func (p *Pipeline) RewriteEmbeds(noteID int64, content string) string {
	return embedPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := strings.TrimSpace(embedPattern.FindStringSubmatch(token)[1])
		return fmt.Sprintf("![%s](%s)", name, p.FileURL(noteID, name))
	})
}

func (p *Pipeline) FileURL(noteID int64, filename string) string {
	return fmt.Sprintf("%s/api/files/%d/%s", p.fileBaseURL, noteID, url.PathEscape(filename))
}

// RewriteTags wraps every #word in a tag:// anchor.
func RewriteTags(content string) string {
	return tagPattern.ReplaceAllString(content, `<a href="tag://$1" class="tag">#$1</a>`)
}

// ExtractTags returns the distinct tag names in content, in order of first
// occurrence. It matches exactly what RewriteTags makes clickable.
func ExtractTags(content string) []string {
	matches := tagPattern.FindAllStringSubmatch(content, -1)
	tags := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		tags = append(tags, m[1])
	}
	return tags
}

// Render converts markdown to sanitised HTML.
func (p *Pipeline) Render(markdown string) string {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(markdown), &buf); err != nil {
		// goldmark only fails on writer errors, which bytes.Buffer never returns.
		return html.EscapeString(markdown)
	}
	return p.policy.Sanitize(buf.String())
}

// ResolveLinks replaces [[Title]] in rendered HTML with note:// anchors.
// Titles with no match in known get the broken style.
func ResolveLinks(rendered string, known []model.Note) string {
	titles := titleSet(known)
	return linkPattern.ReplaceAllStringFunc(rendered, func(token string) string {
		title := strings.TrimSpace(html.UnescapeString(linkPattern.FindStringSubmatch(token)[1]))
		escaped := html.EscapeString(title)
		href := "note://" + url.PathEscape(title)
		if titles[model.TitleKey(title)] {
			return fmt.Sprintf(`<a href="%s" class="note-link">%s</a>`, href, escaped)
		}
		return fmt.Sprintf(`<a href="%s" class="note-link broken" style="%s">%s</a>`, href, brokenStyle, escaped)
	})
}

// Links lists the wiki-links in raw content with their resolution state.
func Links(content string, known []model.Note) []Link {
	titles := titleSet(known)
	text := embedPattern.ReplaceAllString(content, "")
	var links []Link
	seen := make(map[string]bool)
	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(m[1])
		key := model.TitleKey(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		links = append(links, Link{Title: title, Broken: !titles[key]})
	}
	return links
}

func titleSet(notes []model.Note) map[string]bool {
	set := make(map[string]bool, len(notes))
	for _, n := range notes {
		set[model.TitleKey(n.Title)] = true
	}
	return set
}
