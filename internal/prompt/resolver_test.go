package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func levelsWith(n int, at map[int][]string) [][]string {
	levels := make([][]string, n)
	for depth, texts := range at {
		levels[depth] = texts
	}
	return levels
}

func TestResolve_CaptionBeatsNearerFallbackText(t *testing.T) {
	levels := levelsWith(6, map[int][]string{
		1: {"This is an unrelated block of text that is much longer than the caption"},
		3: {"I generated an image with the prompt: 'a red fox'"},
	})
	assert.Equal(t, "a red fox", NewResolver().Resolve(FromLevels(levels)))
}

func TestResolve_FallbackText(t *testing.T) {
	levels := levelsWith(8, map[int][]string{
		2: {"short"},
		5: {"draw a lighthouse at dusk"},
	})
	assert.Equal(t, "draw a lighthouse at dusk", NewResolver().Resolve(FromLevels(levels)))
}

func TestResolve_NoPrompt(t *testing.T) {
	levels := levelsWith(4, map[int][]string{0: {"tiny"}, 3: {"ten chars!"}})
	assert.Equal(t, NoPrompt, NewResolver().Resolve(FromLevels(levels)))
	assert.Equal(t, NoPrompt, NewResolver().Resolve(nil))
}

func TestResolve_DepthBound(t *testing.T) {
	levels := levelsWith(12, map[int][]string{
		10: {"I generated an image with the prompt: 'too far away'"},
		11: {"also beyond the bound of the search"},
	})
	assert.Equal(t, NoPrompt, NewResolver().Resolve(FromLevels(levels)))

	r := &Resolver{MaxDepth: 11}
	assert.Equal(t, "too far away", r.Resolve(FromLevels(levels)))
}

func TestResolve_FallbackSkipsLeadInText(t *testing.T) {
	levels := levelsWith(3, map[int][]string{
		0: {"I generated an image with the prompt: missing quotes"},
		2: {"a user written prompt here"},
	})
	assert.Equal(t, "a user written prompt here", NewResolver().Resolve(FromLevels(levels)))
}

func TestExtractCaption(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"I generated an image with the prompt: 'a red fox'", "a red fox", true},
		{"I generated an image with the prompt: ‘a fox’s tail’", "a fox’s tail", true},
		{"I generated an image with the prompt: \"neon city\"  ", "neon city", true},
		{"Sure! I generated an image with the prompt: 'cat's hat'", "cat's hat", true},
		{"I generated an image with the prompt: no quotes", "", false},
		{"Something else entirely", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractCaption(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

type faultyNode struct {
	err   error
	panic bool
}

func (f faultyNode) Parent() Node { return nil }

func (f faultyNode) Texts() ([]string, error) {
	if f.panic {
		panic("detached node")
	}
	return nil, f.err
}

func TestResolve_FaultsYieldErrorSentinel(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, ErrorPrompt, r.Resolve(faultyNode{err: errors.New("stale element")}))
	assert.Equal(t, ErrorPrompt, r.Resolve(faultyNode{panic: true}))
}

const transcript = `<html><body>
<main>
  <div class="turn user"><div dir="ltr">Please draw me something</div></div>
  <div class="turn grok">
    <div dir="ltr"><span>I generated an image with the prompt: 'a red fox in the snow'</span></div>
    <div class="grid">
      <div class="cell"><img src="blob:https://x.com/1111" alt=""></div>
    </div>
  </div>
  <section class="orphan"><div class="cell"><img src="blob:https://x.com/2222"></div></section>
</main>
</body></html>`

func TestFromHTML(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(transcript))
	require.NoError(t, err)

	imgs := FindElements(doc, func(n *html.Node) bool {
		return n.Data == "img" && strings.HasPrefix(Attr(n, "src"), "blob:")
	})
	require.Len(t, imgs, 2)
	assert.Equal(t, "blob:https://x.com/1111", Attr(imgs[0], "src"))

	r := NewResolver()
	assert.Equal(t, "a red fox in the snow", r.Resolve(FromHTML(imgs[0].Parent)))
	// A caption two levels up wins over the nearer user turn text.
	assert.Equal(t, "a red fox in the snow", r.Resolve(FromHTML(imgs[1].Parent)))

	plain, err := html.Parse(strings.NewReader(`<div><p>Please draw me something</p><div><img src="blob:x"></div></div>`))
	require.NoError(t, err)
	img := FindElements(plain, func(n *html.Node) bool { return n.Data == "img" })[0]
	assert.Equal(t, "Please draw me something", r.Resolve(FromHTML(img.Parent)))
}

func TestImagesInHTML(t *testing.T) {
	imgs, err := ImagesInHTML(strings.NewReader(transcript), "blob:")
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "blob:https://x.com/2222", imgs[1].Ref)
	assert.Equal(t, "a red fox in the snow", NewResolver().Resolve(imgs[0].Container))

	none, err := ImagesInHTML(strings.NewReader(`<img src="https://x.com/a.png"><img>`), "blob:")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := ImagesInHTML(strings.NewReader(`<img src="https://x.com/a.png"><img>`), "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "https://x.com/a.png", all[0].Ref)
}

func TestFromHTML_NonElement(t *testing.T) {
	assert.Nil(t, FromHTML(nil))
	assert.Nil(t, FromHTML(&html.Node{Type: html.TextNode, Data: "x"}))
}
