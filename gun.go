// Liar's Bar Gun
//
// Every table is one shared game state, kept on the server and mirrored to each browser
// that opens the table's URL. Browsers send commands; the hub applies them to the table's
// store one at a time, saves the result, and pushes the new snapshot to everyone.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - Setup form seats 2-4 players, blank names fall back to "Player N"
// - Any player still in may fire; the suggested turn skips eliminated players
// - Elimination and win announcements are derived by comparing snapshots
// - The table is reloaded with the same roster a short, configurable delay after a win
// - Tables are saved after every change and restored when the game ID is revisited
// - Idle sessions are closed after a configurable timeout; their saved table is kept
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current table, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Seednode/liarsgun/games/gun"
	"github.com/Seednode/liarsgun/storage"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	minPlayers    = 2
	maxPlayers    = 4
	maxNameLength = 32
	maxGameIDLen  = 32
	maxMessage    = 4096
)

var (
	errGameStarted      = errors.New("the game has already started")
	errGameNotStarted   = errors.New("the game has not started yet")
	errTableFull        = fmt.Errorf("a table seats at most %d players", maxPlayers)
	errNotEnoughPlayers = fmt.Errorf("a table needs at least %d players", minPlayers)
	errMissingPlayer    = errors.New("no player was given")
	errCannotFire       = errors.New("that player cannot fire")
	errUnknownPlayer    = errors.New("that player is not at the table")
	errUnknownCommand   = errors.New("unknown command")
)

// Messages coming from clients
type ClientMessage struct {
	Type     string   `json:"type"`                // "setup", "add_player", "start_game", "fire", "eliminate", "next_player", "reset_game", "restart_game"
	Name     string   `json:"name,omitempty"`      // add_player
	Names    []string `json:"names,omitempty"`     // setup
	PlayerID *int     `json:"player_id,omitempty"` // fire / eliminate
}

// GameStateMessage carries a full snapshot of the table.
type GameStateMessage struct {
	Type string `json:"type"` // "game_state"
	gun.State
	Remaining int `json:"remaining"`
}

// PlayerEventMessage announces an elimination or a winner.
type PlayerEventMessage struct {
	Type    string     `json:"type"` // "eliminated" or "winner"
	Player  gun.Player `json:"player"`
	Message string     `json:"message"`
}

// SimpleMessage is for notifications sent to a single client ("error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type command struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id      string
	clients map[*Client]bool
	store   *gun.Store
	slot    *storage.Session

	register chan *Client
	unreg    chan *Client
	commands chan command
	resets   chan struct{}
	done     chan struct{}

	closeOnce sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
	resetTimer *time.Timer
}

func newHub(cfg *Config, gameID string, slots storage.Slots) *Hub {
	now := time.Now()

	h := &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		slot:       storage.Bind(slots, gameID),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		resets:     make(chan struct{}),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	state, err := gun.Load(ctx, h.slot)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		errorf("GAMES: Unable to restore %s, starting a new table: %v", gameID, err)
	default:
		logf(cfg, "GAMES: Restored %s with %d players", gameID, len(state.Players))
	}

	h.store = gun.NewStore(state, gun.WithHook(h.saver()))

	return h
}

// saver persists every snapshot the store produces. Failures leave the in-memory table authoritative.
func (h *Hub) saver() gun.Hook {
	return func(s gun.State) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := gun.Save(ctx, h.slot, s); err != nil {
			errorf("GAMES: Unable to save %s: %v", h.id, err)
		}
	}
}

func (h *Hub) run(cfg *Config) {
	h.mu.Lock()
	if _, ok := gun.Winner(h.store.Snapshot()); ok && h.store.Snapshot().GameStarted {
		h.scheduleResetLocked(cfg)
	}
	h.mu.Unlock()

	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			h.sendLocked(c, stateMessage(h.store.Snapshot()))
			connected := len(h.clients)
			h.mu.Unlock()

			logf(cfg, "GAMES: Client %s joined %s (%d connected)", c.playerID, h.id, connected)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case cmd := <-h.commands:
			h.handleCommand(cfg, cmd)

		case <-h.resets:
			h.handleScheduledReset(cfg)
		}
	}
}

func stateMessage(s gun.State) GameStateMessage {
	return GameStateMessage{
		Type:      "game_state",
		State:     s,
		Remaining: gun.Remaining(s),
	}
}

func playerName(name string) string {
	name = strings.TrimSpace(name)

	for utf8.RuneCountInString(name) > maxNameLength {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}

	return strings.TrimSpace(name)
}

// handleCommand applies one client command and announces the outcome.
func (h *Hub) handleCommand(cfg *Config, cmd command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	prev := h.store.Snapshot()

	if err := h.applyLocked(cmd.msg); err != nil {
		logf(cfg, "GAMES: Rejected %q from %s in %s: %v", cmd.msg.Type, cmd.client.playerID, h.id, err)

		h.sendLocked(cmd.client, SimpleMessage{
			Type:    "error",
			Message: err.Error(),
		})

		return
	}

	logf(cfg, "GAMES: Applied %q from %s in %s", cmd.msg.Type, cmd.client.playerID, h.id)

	h.announceLocked(cfg, prev, h.store.Snapshot())
}

func (h *Hub) applyLocked(msg ClientMessage) error {
	s := h.store.Snapshot()

	switch msg.Type {
	case "setup":
		if s.GameStarted {
			return errGameStarted
		}
		if len(msg.Names) < minPlayers {
			return errNotEnoughPlayers
		}
		if len(msg.Names) > maxPlayers {
			return errTableFull
		}

		h.store.RestartGame()
		for _, name := range msg.Names {
			h.store.AddPlayer(playerName(name))
		}
		h.store.StartGame()

	case "add_player":
		if s.GameStarted {
			return errGameStarted
		}
		if len(s.Players) >= maxPlayers {
			return errTableFull
		}

		h.store.AddPlayer(playerName(msg.Name))

	case "start_game":
		if len(s.Players) < minPlayers {
			return errNotEnoughPlayers
		}

		h.store.StartGame()

	case "fire":
		if !s.GameStarted {
			return errGameNotStarted
		}
		if msg.PlayerID == nil {
			return errMissingPlayer
		}
		if !h.store.FireChamber(*msg.PlayerID) {
			return errCannotFire
		}

	case "eliminate":
		if !s.GameStarted {
			return errGameNotStarted
		}
		if msg.PlayerID == nil {
			return errMissingPlayer
		}
		if !h.store.EliminatePlayer(*msg.PlayerID) {
			return errUnknownPlayer
		}

	case "next_player":
		h.store.NextPlayer()

	case "reset_game":
		h.cancelResetLocked()
		h.store.ResetGame()

	case "restart_game":
		h.cancelResetLocked()
		h.store.RestartGame()

	default:
		return errUnknownCommand
	}

	return nil
}

// announceLocked broadcasts the new snapshot, plus any eliminations and a winner found by comparing it to prev.
func (h *Hub) announceLocked(cfg *Config, prev, next gun.State) {
	h.broadcastLocked(stateMessage(next))

	for _, p := range gun.NewlyEliminated(prev, next) {
		logf(cfg, "GAMES: %q was eliminated in %s after %d shots", p.Name, h.id, p.Shots())

		h.broadcastLocked(PlayerEventMessage{
			Type:    "eliminated",
			Player:  p,
			Message: p.Name + " has been eliminated from the game!",
		})
	}

	winner, ok := gun.Winner(next)
	if !ok || !next.GameStarted {
		return
	}
	if _, already := gun.Winner(prev); already && prev.GameStarted {
		return
	}

	logf(cfg, "GAMES: %q won %s", winner.Name, h.id)

	h.broadcastLocked(PlayerEventMessage{
		Type:    "winner",
		Player:  winner,
		Message: winner.Name + " is the last player standing!",
	})

	h.scheduleResetLocked(cfg)
}

func (h *Hub) scheduleResetLocked(cfg *Config) {
	if cfg.resetDelay <= 0 {
		return
	}

	h.cancelResetLocked()

	h.resetTimer = time.AfterFunc(cfg.resetDelay, func() {
		select {
		case h.resets <- struct{}{}:
		case <-h.done:
		}
	})
}

func (h *Hub) cancelResetLocked() {
	if h.resetTimer != nil {
		h.resetTimer.Stop()
		h.resetTimer = nil
	}
}

// handleScheduledReset reloads the table after a win, unless it was already reset or restarted.
func (h *Hub) handleScheduledReset(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resetTimer = nil

	prev := h.store.Snapshot()
	if _, ok := gun.Winner(prev); !ok || !prev.GameStarted {
		return
	}

	h.store.ResetGame()

	logf(cfg, "GAMES: Reloaded %s for another round", h.id)

	h.announceLocked(cfg, prev, h.store.Snapshot())
}

// sendLocked drops the client if its buffer is full. Dropped clients get nothing more.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

// closeAll stops the hub and disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.closeOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelResetLocked()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "liarsgun_id"

func getOrSetPlayerID(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func validGameID(id string) bool {
	if id == "" || len(id) > maxGameIDLen {
		return false
	}

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated table.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	slots       storage.Slots
	idleTimeout time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

func newGameManager(cfg *Config, slots storage.Slots) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		slots:       slots,
		idleTimeout: cfg.sessionTimeout,
		stop:        make(chan struct{}),
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop(cfg)
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(cfg, gameID, gm.slots)
	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically closes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop(cfg *Config) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.stop:
			return
		case <-ticker.C:
			gm.reap(cfg, time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cfg *Config, cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		age := time.Since(hub.createdAt)
		connected := len(hub.clients)
		seated := len(hub.store.Snapshot().Players)
		hub.mu.RUnlock()

		if connected == 0 && last.Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()

			// An empty table has nothing to restore.
			if seated == 0 {
				gm.dropSlot(cfg, id)
			}

			logf(cfg, "GAMES: Closed idle session %s after %s", id, age.Round(time.Second))
		}
	}
}

// dropSlot removes the saved table of a reaped session. Callers hold gm.mu.
func (gm *GameManager) dropSlot(cfg *Config, gameID string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := gm.slots.Delete(ctx, gameID); err != nil {
		errorf("GAMES: Unable to drop saved table %s: %v", gameID, err)

		return
	}

	logf(cfg, "GAMES: Dropped empty table %s", gameID)
}

// Close stops the reaper and every live hub.
func (gm *GameManager) Close() {
	gm.stopOnce.Do(func() {
		close(gm.stop)
	})

	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.closeAll()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(cfg, w, r)

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.commands <- command{client: c, msg: msg}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current table URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("gameid")) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; strip trailing "/qr" to get the table URL.
		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("gameid")) {
			http.NotFound(w, r)
			return
		}

		data, err := assets.ReadFile("assets/gun/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "client unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(cfg, w, r)

		_, err = w.Write(data)
		if err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created table %s/%s for %s", path, gameID, realIP(r))
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerGunGame sets up routes so that:
//   - $path                  → redirects to new random table (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that table
//   - $path/:gameid/qr       → PNG QR code for that table URL
func registerGunGame(cfg *Config, path string, mux *httprouter.Router, slots storage.Slots, errs chan<- error) *GameManager {
	gm := newGameManager(cfg, slots)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg))

	return gm
}
