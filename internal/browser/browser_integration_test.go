//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grokcapture/internal/browser"
	"grokcapture/internal/prompt"
	"grokcapture/internal/session"
	"grokcapture/internal/watcher"
)

const conversationPage = `<html><body>
<div id="thread">
  <div class="turn"><div dir="ltr">I generated an image with the prompt: 'a red fox'</div><div id="slot"></div></div>
</div>
<script>
setTimeout(() => {
  const c = document.createElement('canvas');
  c.width = 4; c.height = 4;
  c.getContext('2d').fillRect(0, 0, 2, 2);
  c.toBlob((blob) => {
    const wrap = document.createElement('div');
    const img = document.createElement('img');
    img.src = URL.createObjectURL(blob);
    wrap.appendChild(img);
    document.getElementById('slot').appendChild(wrap);
  }, 'image/png');
}, 500);
</script>
</body></html>`

func TestDocument_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, conversationPage)
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.StartURL = ts.URL + "/?conversation=itest"
	cfg.NavigationTimeout = 10 * time.Second
	cfg.DrainInterval = 50 * time.Millisecond

	doc := browser.NewDocument(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Ensure shutdown to clean up browser process
	defer func() {
		if err := doc.Shutdown(context.Background()); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	}()

	require.NoError(t, doc.Start(ctx), "Failed to start browser")
	require.NotEmpty(t, doc.ControlURL())
	require.Equal(t, "itest", session.FromURL(doc.Location(), session.DefaultParam))

	var batch watcher.Batch
	select {
	case batch = <-doc.Changes():
	case <-ctx.Done():
		t.Fatal("no change batch delivered")
	}
	require.Len(t, batch, 1)
	require.True(t, strings.HasPrefix(batch[0].Ref, "blob:"))
	require.Equal(t, "a red fox", prompt.NewResolver().Resolve(batch[0].Container))

	imgs, err := doc.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	require.Equal(t, batch[0].Ref, imgs[0].Ref)

	data, err := doc.Fetch(ctx, batch[0].Ref)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\x89PNG"))
}
