// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package monitor serves a running capture: prometheus metrics, a JSON status
// document and a websocket stream of the lines being written.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/outrigdev/logscope/pkg/logutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const HttpReadTimeout = 5 * time.Second
const HttpMaxHeaderBytes = 60000

const wsWriteWaitTimeout = 10 * time.Second
const wsReadWaitTimeout = 30 * time.Second
const wsPingPeriod = 10 * time.Second

var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  32 * 1024,
	HandshakeTimeout: 1 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

type Server struct {
	hub        *Hub
	gatherer   prometheus.Gatherer
	statusFn   func() any
	log        *logrus.Entry
	httpServer *http.Server
}

// MakeServer wires the routes. statusFn produces the /status document.
func MakeServer(hub *Hub, gatherer prometheus.Gatherer, statusFn func() any) *Server {
	s := &Server{
		hub:      hub,
		gatherer: gatherer,
		statusFn: statusFn,
		log:      logutil.For("monitor"),
	}
	s.httpServer = &http.Server{
		ReadTimeout:    HttpReadTimeout,
		MaxHeaderBytes: HttpMaxHeaderBytes,
		Handler:        s.Handler(),
	}
	return s
}

func (s *Server) Handler() http.Handler {
	gr := mux.NewRouter()
	gr.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	gr.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	gr.HandleFunc("/ws", s.handleWs)

	var handler http.Handler = gr
	handler = handlers.RecoveryHandler(handlers.RecoveryLogger(s.log), handlers.PrintRecoveryStack(false))(handler)
	handler = handlers.LoggingHandler(s.log.WriterLevel(logrus.DebugLevel), handler)
	return handler
}

// Serve blocks until the listener fails or Shutdown is called
func (s *Server) Serve(listener net.Listener) error {
	s.log.Infof("monitor listening on %s", listener.Addr())
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(s.statusFn()); err != nil {
		s.log.Warnf("error writing status: %v", err)
	}
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the http error
		s.log.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connId := uuid.New().String()
	peer := s.hub.addPeer(connId)
	if peer == nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	defer s.hub.removePeer(connId)
	s.log.Debugf("new stream connection: connid:%s", connId)

	closeCh := make(chan struct{})
	go s.readLoop(conn, closeCh)
	s.writeLoop(conn, peer, closeCh, connId)
}

// readLoop only exists to process pongs and notice the client going away
func (s *Server) readLoop(conn *websocket.Conn, closeCh chan struct{}) {
	defer close(closeCh)
	conn.SetReadLimit(4 * 1024)
	conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, peer *hubPeer, closeCh chan struct{}, connId string) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-peer.sendCh:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWaitTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				s.log.Debugf("stream write error (%s): %v", connId, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWaitTimeout)); err != nil {
				s.log.Debugf("stream ping error (%s): %v", connId, err)
				return
			}
		case <-closeCh:
			return
		}
	}
}

// Listen is a small helper so callers get a bound address before serving
func Listen(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error creating monitor listener at %v: %w", addr, err)
	}
	return listener, nil
}
