package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("spinwheel v" + releaseVersion + "\n"))
		if err != nil {
			log.Error().Err(err).Str("client", realIP(r)).Msg("writing version page")

			return
		}

		log.Debug().
			Str("client", realIP(r)).
			Str("size", humanReadableSize(int64(written))).
			Dur("elapsed", time.Since(startTime).Round(time.Microsecond)).
			Msg("served version page")
	}
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		if _, err := w.Write([]byte("Ok\n")); err != nil {
			log.Error().Err(err).Str("client", realIP(r)).Msg("writing health check")
		}
	}
}

// serveQR renders a PNG QR code pointing phones at the session page.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("sessionid")
		if sessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)

			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		if _, err := w.Write(png); err != nil {
			log.Error().Err(err).Str("client", realIP(r)).Msg("writing qr code")

			return
		}

		log.Debug().
			Str("session", sessionID).
			Str("client", realIP(r)).
			Str("size", humanReadableSize(int64(len(png)))).
			Msg("served qr code")
	}
}

// redirectNewSession handles GET on the game root by generating a fresh
// random session ID and redirecting to it.
func redirectNewSession(cfg *Config, path string, sm *SessionManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := sm.newSessionID()
		log.Info().Str("session", sessionID).Str("client", realIP(r)).Msg("created session")
		http.Redirect(w, r, cfg.prefix+path+"/"+sessionID, http.StatusTemporaryRedirect)
	}
}

// registerWheelGame sets up routes so that:
//   - $path                  → redirects to a new random session (8-char ID)
//   - $path/:sessionid       → HTML client
//   - $path/:sessionid/ws    → WebSocket for that session
//   - $path/:sessionid/qr    → PNG QR code for that session URL
func registerWheelGame(cfg *Config, path string, mux *httprouter.Router, sm *SessionManager) {
	mux.GET(cfg.prefix+path, redirectNewSession(cfg, path, sm))

	mux.GET(cfg.prefix+path+"/:sessionid", serveSessionPage(cfg))

	mux.GET(cfg.prefix+path+"/:sessionid/ws", serveSessionSocket(cfg, sm))

	mux.GET(cfg.prefix+path+"/:sessionid/qr", serveQR(cfg))
}

func registerRoutes(cfg *Config, mux *httprouter.Router, sm *SessionManager) {
	mux.GET(cfg.prefix+"/", serveHomePage(cfg))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	registerWheelGame(cfg, "/wheel", mux, sm)
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	if cfg.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log.Info().Str("version", releaseVersion).Msg("spinwheel starting")

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	sm := newSessionManager(cfg, clockwork.NewRealClock())

	registerRoutes(cfg, mux, sm)

	go func() {
		var err error
		log.Info().Str("url", cfg.scheme()+"://"+srv.Addr+cfg.prefix+"/").Msg("listening")
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
