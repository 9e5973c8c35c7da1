package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/przemyslawpluta/extractd/pkg/extractd"
)

type Server struct {
	router  *mux.Router
	hub     *Hub
	client  *extractd.Client
	version string
}

// NewServer serves client over HTTP and pushes its progress to websocket
// clients.
func NewServer(client *extractd.Client) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		hub:     NewHub(),
		client:  client,
		version: "unknown",
	}

	go s.hub.Run()

	client.SetProgressCallback(s.broadcastProgress)

	s.setupRoutes()
	return s
}

func (s *Server) SetVersion(v string) {
	s.version = v
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods("GET")
	api.HandleFunc("/extract", s.handleExtract).Methods("POST")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/desist", s.handleDesist).Methods("POST")
	api.HandleFunc("/ws", s.handleWebSocket)

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func (s *Server) Start(addr string) error {
	fmt.Printf("Starting extractd API at http://%s\n", addr)
	return http.ListenAndServe(addr, s.router)
}
