package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Gleipnir-Technology/bounce/process"
	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const HeaderUser = "X-Bounce-User"

//go:embed reload.js
var reloadJS []byte

var reloadTag = []byte(`<script src="/_bounce/reload.js"></script>`)

type Webserver struct {
	Bind     string
	States   <-chan *state.Bounce
	Upstream *url.URL

	latest  atomic.Pointer[state.Bounce]
	changes *process.SubscriptionManager[*state.Bounce]
}

type statusResponse struct {
	*state.Bounce
	Upstream      string `json:"upstream"`
	UpstreamAlive bool   `json:"upstreamAlive"`
}

func NewWebserver(bind string, upstream *url.URL, states <-chan *state.Bounce) *Webserver {
	ws := &Webserver{
		Bind:     bind,
		States:   states,
		Upstream: upstream,
		changes:  process.NewSubscriptionManager[*state.Bounce](),
	}
	ws.latest.Store(state.New())
	return ws
}

func (ws *Webserver) Run(ctx context.Context) error {
	logger := log.Ctx(ctx)
	server := &http.Server{
		Addr:              ws.Bind,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           ws.Handler(*logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info().Str("bind", ws.Bind).Str("upstream", ws.Upstream.String()).Msg("webserver starting")
		errs <- server.ListenAndServe()
	}()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("webserver shutdown")
			}
			return nil
		case err := <-errs:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("webserver on %s: %w", ws.Bind, err)
		case s := <-ws.States:
			ws.update(s)
		}
	}
}

func (ws *Webserver) update(s *state.Bounce) {
	ws.latest.Store(s)
	ws.changes.Publish(s)
}

func (ws *Webserver) Handler(logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Route("/_bounce", func(r chi.Router) {
		r.Get("/status", ws.handleStatus)
		r.Get("/events", ws.handleEvents)
		r.Get("/reload.js", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/javascript")
			w.Write(reloadJS)
		})
	})
	r.Handle("/*", ws.proxy())
	return r
}

func (ws *Webserver) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Bounce:        ws.latest.Load(),
		Upstream:      ws.Upstream.String(),
		UpstreamAlive: isUpstreamAlive(r.Context(), ws.Upstream),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("encode status")
	}
}

// handleEvents streams the build counter so the injected script can reload
// the page once a new build is running.
func (ws *Webserver) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := ws.changes.SubscribeSize(1)
	defer sub.Close()
	writeEvent(w, ws.latest.Load())
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			hlog.FromRequest(r).Debug().Msg("event client closed connection")
			return
		case s := <-sub.C:
			writeEvent(w, s)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, s *state.Bounce) {
	builds := 0
	if s.Trigger != nil {
		builds = s.Trigger.Builds
	}
	running := s.Runner != nil && s.Runner.Status == state.StatusRunnerRunning
	fmt.Fprintf(w, "event: state\ndata: {\"builds\": %d, \"running\": %s}\n\n", builds, strconv.FormatBool(running))
}

func (ws *Webserver) proxy() *httputil.ReverseProxy {
	upstream := ws.Upstream
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Host = upstream.Host
			if s := ws.latest.Load(); s != nil && s.Identity != "" {
				pr.Out.Header.Set(HeaderUser, s.Identity)
			}
		},
		ModifyResponse: injectReload,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			hlog.FromRequest(r).Debug().Err(err).Msg("upstream unavailable")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Upstream server is not available. Your application is either starting up or has errors.\n"))
		},
	}
}

// injectReload adds the reload script to HTML pages.
func injectReload(resp *http.Response) error {
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil
	}
	if resp.Header.Get("Content-Encoding") != "" {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	resp.Body.Close()

	at := len(body)
	if i := bytes.LastIndex(body, []byte("</body>")); i >= 0 {
		at = i
	} else if i := bytes.LastIndex(body, []byte("</html>")); i >= 0 {
		at = i
	}
	out := make([]byte, 0, len(body)+len(reloadTag))
	out = append(out, body[:at]...)
	out = append(out, reloadTag...)
	body = append(out, body[at:]...)
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}
