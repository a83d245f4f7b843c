package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/scoreboard-dash/internal/ingest"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
	"github.com/shaunagostinho/scoreboard-dash/internal/serialport"
)

// Options wires the server to the rest of the process.
type Options struct {
	Hub     *Hub
	Session *ingest.Session
	Store   *scoreboard.Store
	WebFS   fs.FS
	Metrics http.Handler // nil disables the metrics route

	// ListPorts enumerates serial ports. Defaults to serialport.ListPorts.
	ListPorts func() ([]serialport.PortInfo, error)
	// ShowDemo adds the simulated port to every port list.
	ShowDemo bool
	// Debug is passed through when config changes rebuild reader settings.
	Debug bool
}

// Server serves the scoreboard pages, the live WebSocket feed and the
// control API.
type Server struct {
	cfg  *Config
	opts Options
	hub  *Hub
	mux  *http.ServeMux

	upgrader websocket.Upgrader
}

// inbound is a command sent by a WebSocket client.
type inbound struct {
	Type string `json:"type"`
	Port string `json:"port,omitempty"`
}

// New creates a new Server.
func New(cfg *Config, opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.ListPorts == nil {
		opts.ListPorts = serialport.ListPorts
	}
	s := &Server{
		cfg:  cfg,
		opts: opts,
		hub:  opts.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux = s.routes()
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Serve embedded web files
	if s.opts.WebFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.opts.WebFS)))
	}

	mux.HandleFunc("/ws", s.handleWS)

	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/ports", s.handlePorts)
	mux.HandleFunc("/api/connect", s.handleConnect)
	mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/status", s.handleStatus)

	if s.opts.Metrics != nil {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, s.opts.Metrics)
	}
	return mux
}

// Run starts the HTTP server and blocks until ctx is done or it fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := s.hub.add(conn)

	// New clients start from the current picture
	client.sendTo(TypeState, s.opts.Store.Current())
	client.sendTo(TypeStatus, s.opts.Session.Status())

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (commands / keep-alive)
	go func() {
		defer s.hub.remove(client)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleCommand(client, data)
		}
	}()
}

func (s *Server) handleCommand(client *wsClient, data []byte) {
	var cmd inbound
	if err := json.Unmarshal(data, &cmd); err != nil {
		client.sendTo(TypeError, "invalid message")
		return
	}

	switch cmd.Type {
	case "scan_ports":
		list, err := s.portList()
		if err != nil {
			client.sendTo(TypeError, err.Error())
			return
		}
		client.sendTo(TypePortList, list)
	case "connect_port":
		if cmd.Port == "" {
			client.sendTo(TypeError, "no port selected")
			return
		}
		// Connect joins the previous reader; keep it off the read loop.
		go s.opts.Session.Connect(cmd.Port)
	case "disconnect":
		go s.opts.Session.Disconnect()
	default:
		client.sendTo(TypeError, "unknown command: "+cmd.Type)
	}
}

func (s *Server) portList() (PortList, error) {
	ports, err := s.opts.ListPorts()
	if err != nil {
		return PortList{}, err
	}
	if s.opts.ShowDemo {
		ports = append(ports, serialport.PortInfo{Name: scoreboard.DemoPortName, Description: "Simulated scoreboard"})
	}
	if ports == nil {
		ports = []serialport.PortInfo{}
	}
	return PortList{Ports: ports, CurrentPort: s.opts.Session.Status().Port}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "error": msg})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		settings, err := s.cfg.IngestSettings(s.opts.Debug)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		s.opts.Session.SetSettings(settings)
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	list, err := s.portList()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, list)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req inbound
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Port == "" {
		writeError(w, 400, "body must be {\"port\": \"<name>\"}")
		return
	}
	if err := s.opts.Session.Connect(req.Port); err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, 200, s.opts.Session.Status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.opts.Session.Disconnect()
	writeJSON(w, 200, s.opts.Session.Status())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.opts.Store.Current())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.opts.Session.Status())
}
