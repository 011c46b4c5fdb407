package devserver

import (
	"bytes"

	"golang.org/x/net/html"
)

const (
	pathPrefix     = "/__themebuilder/"
	liveReloadPath = pathPrefix + "livereload"
	clientPath     = pathPrefix + "client.js"
	metricsPath    = pathPrefix + "metrics"
)

var scriptTag = []byte(`<script src="` + clientPath + `" async></script>`)

// clientScript swaps stylesheets in place for css messages and reloads the
// page for anything else. A css message for a stylesheet the page does not
// use is ignored.
const clientScript = `(() => {
  if (window.__THEMEBUILDER_LR__) return;
  window.__THEMEBUILDER_LR__ = true;
  const base = (p) => p.split('?')[0].split('/').pop();
  function swapCSS(paths) {
    const names = new Set(paths.map(base));
    document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
      const url = new URL(link.href, location.href);
      if (!names.has(base(url.pathname))) return;
      url.searchParams.set('tb', Date.now());
      link.href = url.toString();
    });
  }
  function connect() {
    const es = new EventSource('` + liveReloadPath + `');
    es.onmessage = (e) => {
      let msg;
      try { msg = JSON.parse(e.data); } catch (_) { return; }
      if (msg.kind === 'css') { swapCSS(msg.paths || []); return; }
      console.log('[themebuilder] change detected, reloading');
      location.reload();
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

// injectScript inserts tag before the last </body> of doc, or appends it
// when the document has no body end tag. Documents that already reference
// the client are returned unchanged.
func injectScript(doc, tag []byte) []byte {
	if bytes.Contains(doc, []byte(clientPath)) {
		return doc
	}
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset, at := 0, -1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				at = offset
			}
		}
		offset += len(z.Raw())
	}
	if at < 0 || at > len(doc) {
		return append(append([]byte(nil), doc...), tag...)
	}
	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:at]...)
	out = append(out, tag...)
	return append(out, doc[at:]...)
}
