package main

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const identityCookieName = "spinwheel_id"

// getOrSetIdentity reads the participant identity cookie, minting one for
// first-time visitors. The cookie is what keeps an identity stable across
// reconnects.
func getOrSetIdentity(w http.ResponseWriter, r *http.Request) Identity {
	if c, err := r.Cookie(identityCookieName); err == nil && c.Value != "" {
		return Identity(c.Value)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Error().Err(err).Msg("generating identity")

		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return Identity(id)
}

// serveSessionSocket connects a client to the hub chosen by :sessionid.
func serveSessionSocket(cfg *Config, sm *SessionManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("sessionid")
		if sessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)

			return
		}

		identity := getOrSetIdentity(w, r)
		if identity == "" {
			http.Error(w, "unable to assign identity", http.StatusInternalServerError)

			return
		}

		hub := sm.getHub(sessionID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Str("client", realIP(r)).Msg("websocket upgrade")

			return
		}

		// The buffer must absorb a full snapshot replay before the write
		// pump gets scheduled, or the subscriber is dropped at join.
		c := &client{
			id:       uuid.NewString(),
			identity: identity,
			send:     make(chan any, 256),
		}

		hub.register <- c

		go writePump(conn, c)
		readPump(conn, hub, c)
	}
}

func readPump(conn *websocket.Conn, h *Hub, c *client) {
	defer func() {
		h.unreg <- c
		_ = conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		h.requests <- request{c: c, msg: msg}
	}
}

func writePump(conn *websocket.Conn, c *client) {
	defer conn.Close()

	for msg := range c.send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
