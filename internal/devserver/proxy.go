package devserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/themebuilder/internal/logfields"
)

type originKey struct{}

// newProxy forwards requests to the upstream origin keeping the request
// path, and rewrites upstream absolute URLs in HTML and redirects so the
// browser stays on the proxy.
func newProxy(upstream *url.URL) *httputil.ReverseProxy {
	target := &url.URL{Scheme: upstream.Scheme, Host: upstream.Host}
	upOrigin := target.String()
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Bodies are rewritten, so ask for identity encoding.
			pr.Out.Header.Del("Accept-Encoding")
			pr.Out = pr.Out.WithContext(context.WithValue(pr.Out.Context(), originKey{}, publicOrigin(pr.In)))
		},
		ModifyResponse: func(resp *http.Response) error {
			origin, _ := resp.Request.Context().Value(originKey{}).(string)
			return rewriteResponse(resp, upOrigin, origin)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("Upstream request failed", logfields.URL(r.URL.String()), logfields.Error(err))
			http.Error(w, "themebuilder: upstream unavailable: "+err.Error(), http.StatusBadGateway)
		},
	}
}

func publicOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func rewriteResponse(resp *http.Response, upOrigin, origin string) error {
	if origin != "" {
		if loc := resp.Header.Get("Location"); strings.HasPrefix(loc, upOrigin) {
			resp.Header.Set("Location", origin+strings.TrimPrefix(loc, upOrigin))
		}
	}
	if !isHTML(resp.Header.Get("Content-Type")) || resp.Header.Get("Content-Encoding") != "" {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}
	if origin != "" {
		body = rewriteOrigins(body, upOrigin, origin)
	}
	body = injectScript(body, scriptTag)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Header.Del("ETag")
	return nil
}

// rewriteOrigins replaces absolute links to the upstream, including the
// JSON-escaped form WordPress emits in inline scripts.
func rewriteOrigins(body []byte, from, to string) []byte {
	body = bytes.ReplaceAll(body, []byte(from+"/"), []byte(to+"/"))
	escFrom := strings.ReplaceAll(from, "/", `\/`)
	escTo := strings.ReplaceAll(to, "/", `\/`)
	return bytes.ReplaceAll(body, []byte(escFrom+`\/`), []byte(escTo+`\/`))
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}
