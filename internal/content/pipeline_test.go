package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzaccagnino/notesync/internal/model"
)

func note(id int64, title, content string) model.Note {
	return model.Note{ID: model.ID(id), Title: title, Content: content, CollectionTitle: "Default Collection"}
}

func TestExtractTags(t *testing.T) {
	assert.Equal(t, []string{"shopping", "urgent"}, ExtractTags("Buy milk #shopping #urgent and more #shopping"))
	assert.Empty(t, ExtractTags("no tags here # nor here"))
	assert.Equal(t, []string{"a_b1"}, ExtractTags("#a_b1!"))
}

func TestTagsMatchClickableTags(t *testing.T) {
	contents := []string{
		"#one two #three",
		"mixed#inline #x#y",
		"# heading\n\n#tag in body",
		"",
	}
	for _, c := range contents {
		rewritten := RewriteTags(c)
		clickable := tagPattern.FindAllStringSubmatch(rewritten, -1)
		// Every match in the rewritten text is inside an href or the anchor text.
		var names []string
		seen := map[string]bool{}
		for _, m := range clickable {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
		if len(names) == 0 {
			names = []string{}
		}
		assert.Equal(t, names, ExtractTags(c), c)
	}
}

func TestRewriteTags(t *testing.T) {
	assert.Equal(t,
		`plan <a href="tag://work" class="tag">#work</a> today`,
		RewriteTags("plan #work today"))
}

func TestRenderTagAnchorSurvivesMarkdown(t *testing.T) {
	p := New("http://localhost:5689")
	out := p.RenderNote(1, "plan #work today", nil)

	assert.Contains(t, out, `<a href="tag://work" class="tag">#work</a>`)
	assert.Contains(t, out, "<p>")
}

func TestRenderMarkdown(t *testing.T) {
	p := New("")
	out := p.Render("# Title\n\n**bold** and *it*")

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<em>it</em>")
}

func TestRenderStripsScripts(t *testing.T) {
	p := New("")
	out := p.Render("hello <script>alert(1)</script> world")

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "hello")
}

func TestEmbedRewrite(t *testing.T) {
	p := New("http://localhost:5689/")
	out := p.RenderNote(7, "look [[embedded]](cat.png)", nil)

	assert.Contains(t, out, `src="http://localhost:5689/api/files/7/cat.png"`)
	assert.NotContains(t, out, "note-link")
}

func TestEmbedRewriteEscapesFilename(t *testing.T) {
	p := New("http://h")
	assert.Equal(t, "![my cat.png](http://h/api/files/3/my%20cat.png)", p.RewriteEmbeds(3, "[[embedded]](my cat.png)"))
}

func TestBrokenLinkBecomesValidOnceTargetExists(t *testing.T) {
	p := New("")
	a := note(1, "A", "see [[B]]")

	first := p.Apply(a, []model.Note{a})
	assert.Contains(t, first.HTML, `class="note-link broken"`)
	assert.Contains(t, first.HTML, `style="color:red; font-weight:bold;"`)

	b := note(2, "B", "")
	second := p.Apply(a, []model.Note{a, b})
	assert.Contains(t, second.HTML, `<a href="note://B" class="note-link">B</a>`)
	assert.NotContains(t, second.HTML, "broken")
}

func TestLinkResolutionIsCaseInsensitive(t *testing.T) {
	p := New("")
	a := note(1, "A", "see [[shopping list]]")
	target := note(2, "Shopping List", "")

	out := p.Apply(a, []model.Note{a, target})
	assert.Contains(t, out.HTML, `href="note://shopping%20list" class="note-link">shopping list</a>`)
}

func TestLinkTitleWithEntities(t *testing.T) {
	p := New("")
	a := note(1, "A", "see [[Salt & Pepper]]")
	target := note(2, "Salt & Pepper", "")

	out := p.Apply(a, []model.Note{a, target})
	assert.Contains(t, out.HTML, `class="note-link">Salt &amp; Pepper</a>`)
}

func TestApplyIsDeterministic(t *testing.T) {
	p := New("http://localhost:5689")
	n := note(4, "Plan", "# Plan\n\n#work see [[Other]] and [[embedded]](x.png)\n\n- one\n- two")
	known := []model.Note{n, note(5, "Other", "")}

	first := p.Apply(n, known)
	second := p.Apply(n, known)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, []string{"work"}, first.Tags)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	p := New("")
	n := note(1, "A", "#x")
	n.Tags = []string{"stale"}

	out := p.Apply(n, nil)
	assert.Equal(t, []string{"stale"}, n.Tags)
	assert.Equal(t, []string{"x"}, out.Tags)
	assert.Empty(t, n.HTML)
}

func TestLinks(t *testing.T) {
	known := []model.Note{note(1, "B", "")}
	links := Links("[[B]] and [[C]] and [[b]] and [[embedded]](f.png)", known)

	require.Len(t, links, 2)
	assert.Equal(t, Link{Title: "B", Broken: false}, links[0])
	assert.Equal(t, Link{Title: "C", Broken: true}, links[1])
}
