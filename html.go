/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		var htmlBody strings.Builder

		htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
		htmlBody.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		htmlBody.WriteString(`<title>spinwheel</title></head><body>`)
		htmlBody.WriteString(`<h1>spinwheel</h1>`)
		htmlBody.WriteString(fmt.Sprintf(`<p><a href="%s/wheel">Start a new wheel session</a></p>`, cfg.prefix))
		htmlBody.WriteString(`</body></html>`)

		_, _ = w.Write([]byte(htmlBody.String()))
	}
}

// serveSessionPage renders the minimal shell for one session: the QR code
// for phones to join, and the websocket path the display and phone clients
// talk to. Rendering the wheel itself is the front end's job.
func serveSessionPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("sessionid")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		// The identity cookie is minted here, before the websocket
		// connects, so the socket handshake can read it back.
		_ = getOrSetIdentity(w, r)

		base := cfg.prefix + "/wheel/" + sessionID

		var htmlBody strings.Builder

		htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
		htmlBody.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		htmlBody.WriteString(fmt.Sprintf(`<title>spinwheel | %s</title></head><body>`, sessionID))
		htmlBody.WriteString(fmt.Sprintf(`<h1>Session %s</h1>`, sessionID))
		htmlBody.WriteString(fmt.Sprintf(`<img src="%s/qr" alt="Scan to join" width="320" height="320">`, base))
		htmlBody.WriteString(fmt.Sprintf(`<p>Socket: <code>%s/ws</code></p>`, base))
		htmlBody.WriteString(`</body></html>`)

		_, _ = w.Write([]byte(htmlBody.String()))
	}
}

func serveRobots(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(data))
	}
}
