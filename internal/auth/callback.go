package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>canciones - Discord</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<script>
if (location.hash.length > 1) {
  location.replace(location.pathname + "?" + location.hash.substring(1));
}
</script>
<h1>%s</h1>
<p>%s</p>
</body>
</html>`

// CallbackServer receives the OAuth redirect on a loopback address.
//
// Parameters sent in the URL fragment never reach a server, so the page
// served for a bare redirect moves them into the query and reloads.
type CallbackServer struct {
	server   *http.Server
	listener net.Listener
	path     string
	params   chan url.Values
	done     chan struct{}
}

// IsLoopbackRedirect reports whether redirectURI points at this machine,
// in which case a CallbackServer can receive it.
func IsLoopbackRedirect(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// StartCallbackServer listens on the host and port of redirectURI and serves
// its path. Port 0 picks a free port; see URL.
func StartCallbackServer(redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}
	if !IsLoopbackRedirect(redirectURI) {
		return nil, fmt.Errorf("redirect uri %s is not a loopback http address", redirectURI)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", u.Host, err)
	}

	cs := &CallbackServer{
		listener: listener,
		path:     u.Path,
		params:   make(chan url.Values, 1),
		done:     make(chan struct{}),
	}
	if cs.path == "" {
		cs.path = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cs.path, cs.handle)
	cs.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = cs.server.Serve(listener)
		close(cs.done)
	}()

	return cs, nil
}

func (cs *CallbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	switch {
	case q.Get("error") != "":
		fmt.Fprintf(w, callbackPage, "Authorization Failed", "You can close this window and return to the terminal.")
	case q.Get("code") != "" || q.Get("access_token") != "":
		fmt.Fprintf(w, callbackPage, "Authorization Successful!", "You can close this window and return to the terminal.")
	default:
		fmt.Fprintf(w, callbackPage, "Waiting for Discord", "If nothing happens, close this window and try again.")
		return
	}

	select {
	case cs.params <- q:
	default:
	}
}

// URL returns the redirect URI actually being served.
func (cs *CallbackServer) URL() string {
	return "http://" + cs.listener.Addr().String() + cs.path
}

// Wait blocks until a redirect arrives or ctx is done.
func (cs *CallbackServer) Wait(ctx context.Context) (url.Values, error) {
	select {
	case p := <-cs.params:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops the server.
func (cs *CallbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = cs.server.Shutdown(ctx)
	<-cs.done
}

// ParseRedirect extracts the login parameters from a redirect URL pasted
// by the user. Query and fragment parameters are merged, the fragment
// winning.
func ParseRedirect(raw string) (url.Values, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redirect: %w", err)
	}
	params := u.Query()
	if u.Fragment != "" {
		frag, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, fmt.Errorf("parse redirect fragment: %w", err)
		}
		for k, v := range frag {
			params[k] = v
		}
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: redirect carries no parameters", ErrAuth)
	}
	return params, nil
}

// OpenBrowser opens url in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
