package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/annsts/underlay/internal/player"
	"github.com/annsts/underlay/internal/settings"
)

const sessionCookie = "underlay_token"

// Server serves the control panel with authentication.
type Server struct {
	player   *player.Player
	store    *settings.Store
	port     int
	sessions sync.Map // token → expiry time
}

func NewServer(p *player.Player, store *settings.Store, port int) *Server {
	s := &Server{player: p, store: store, port: port}

	// Logins survive restarts.
	if saved, err := store.LoadSessions(); err == nil {
		for token, sess := range saved {
			s.sessions.Store(token, sess.Expiry)
		}
	}
	store.CleanExpiredSessions()
	return s
}

func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", s.handleLoginPage)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/", s.requireAuth(s.handleIndex))
	mux.HandleFunc("/api/state", s.requireAuth(s.handleState))
	mux.HandleFunc("/api/play", s.requireAuth(s.handlePlay))
	mux.HandleFunc("/api/pause", s.requireAuth(s.handlePause))
	mux.HandleFunc("/api/stop", s.requireAuth(s.handleStop))
	mux.HandleFunc("/api/toggle", s.requireAuth(s.handleToggle))
	mux.HandleFunc("/api/layers", s.requireAuth(s.handleLayers))
	mux.HandleFunc("/api/config", s.requireAuth(s.handleConfig))
	mux.HandleFunc("/api/volume", s.requireAuth(s.handleVolume))
	mux.HandleFunc("/api/autoreconnect", s.requireAuth(s.handleAutoReconnect))
	mux.HandleFunc("/api/dismiss", s.requireAuth(s.handleDismiss))

	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("web control panel started", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("web server error", "err", err)
		}
	}()
}

func (s *Server) generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Server) isValidSession(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	expiry, ok := s.sessions.Load(cookie.Value)
	if !ok {
		return false
	}
	if time.Now().After(expiry.(time.Time)) {
		s.sessions.Delete(cookie.Value)
		s.store.DeleteSession(cookie.Value)
		return false
	}
	return true
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.isValidSession(r) {
			next(w, r)
			return
		}
		// API calls get 401, page requests redirect to login
		if len(r.URL.Path) > 4 && r.URL.Path[:4] == "/api" {
			http.Error(w, `{"error":"unauthorized"}`, 401)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}
	r.ParseForm()
	user := r.FormValue("username")
	pass := r.FormValue("password")

	userID, err := s.store.Authenticate(user, pass)
	if err != nil {
		slog.Error("login check failed", "err", err)
		http.Error(w, `{"error":"internal error"}`, 500)
		return
	}
	if userID == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(401)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid username or password"})
		return
	}

	token := s.generateToken()
	expiry := time.Now().Add(24 * time.Hour)
	s.sessions.Store(token, expiry)
	s.store.SaveSession(token, userID, expiry)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("user logged in", "username", user, "ip", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err == nil {
		s.sessions.Delete(cookie.Value)
		s.store.DeleteSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) writeSnapshot(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.player.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.player.Play(r.Context()); err != nil {
		slog.Warn("play via web failed", "err", err)
	}
	s.writeSnapshot(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.player.Pause(r.Context())
	s.writeSnapshot(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.player.Stop(r.Context())
	s.writeSnapshot(w)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.player.Toggle(r.Context()); err != nil {
		slog.Warn("toggle via web failed", "err", err)
	}
	s.writeSnapshot(w)
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}
	var layers []player.Layer
	if err := json.NewDecoder(r.Body).Decode(&layers); err != nil {
		http.Error(w, `{"error":"invalid layers"}`, 400)
		return
	}
	if err := s.player.SetLayers(r.Context(), layers); err != nil {
		slog.Warn("layer update failed", "err", err)
	}
	if err := s.store.SaveLayers(layers); err != nil {
		slog.Error("persist layers", "err", err)
	}
	s.writeSnapshot(w)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}
	// Decode over the current config so omitted fields keep their
	// values; the seed in particular never comes from the panel.
	cfg := s.player.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, `{"error":"invalid config"}`, 400)
		return
	}
	s.player.SetConfig(r.Context(), cfg)
	if err := s.store.SaveConfig(cfg); err != nil {
		slog.Error("persist config", "err", err)
	}
	s.writeSnapshot(w)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(r.URL.Query().Get("v"))
	if err != nil || v < 0 || v > 100 {
		http.Error(w, `{"error":"invalid volume"}`, 400)
		return
	}
	s.player.SetVolume(v)
	if err := s.store.SaveVolume(v); err != nil {
		slog.Error("persist volume", "err", err)
	}
	s.writeSnapshot(w)
}

func (s *Server) handleAutoReconnect(w http.ResponseWriter, r *http.Request) {
	on, err := strconv.ParseBool(r.URL.Query().Get("on"))
	if err != nil {
		http.Error(w, `{"error":"invalid value"}`, 400)
		return
	}
	s.player.SetAutoReconnect(on)
	if err := s.store.SaveAutoReconnect(on); err != nil {
		slog.Error("persist auto-reconnect", "err", err)
	}
	s.writeSnapshot(w)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.player.ClearNotices()
	s.writeSnapshot(w)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.isValidSession(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, loginHTML)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}
