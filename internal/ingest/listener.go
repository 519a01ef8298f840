// ABOUTME: WebSocket listener for the network audio producer
// ABOUTME: Binary frames carry PCM packets, text frames carry control messages
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Sink is where inbound audio lands. The engine satisfies it.
type Sink interface {
	OnPCMPacket(buf []byte, offset, length int)
	OnTrackFlush()
}

// Config holds listener configuration
type Config struct {
	Addr string
}

// controlMessage is the JSON envelope for text frames
type controlMessage struct {
	Type string `json:"type"`
}

// Listener accepts one audio producer at a time over WebSocket and
// forwards its frames to the sink. A new producer displaces the old one.
type Listener struct {
	config   Config
	sink     Sink
	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	mu           sync.Mutex
	producer     *websocket.Conn
	producerAddr string

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a listener feeding the given sink
func New(config Config, sink Sink) *Listener {
	mux := http.NewServeMux()

	return &Listener{
		config: config,
		sink:   sink,
		mux:    mux,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Producers are local-network senders, not browsers
				return true
			},
		},
		stopChan: make(chan struct{}),
	}
}

// Start runs the listener until Stop is called or the HTTP server fails
func (l *Listener) Start() error {
	l.mux.HandleFunc("/airwave", l.handleWebSocket)

	l.httpServer = &http.Server{
		Addr:    l.config.Addr,
		Handler: l.mux,
	}

	log.Printf("Ingest listening on %s", l.config.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := l.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-l.stopChan:
		log.Printf("Ingest shutting down...")
	case err := <-errChan:
		log.Printf("Ingest HTTP server error: %v", err)
		serverErr = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Ingest shutdown error: %v", err)
	}

	l.mu.Lock()
	if l.producer != nil {
		l.producer.Close()
		l.producer = nil
	}
	l.mu.Unlock()

	l.wg.Wait()
	log.Printf("Ingest stopped")

	if serverErr != nil {
		return fmt.Errorf("ingest server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the listener
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}

// ProducerAddr returns the connected producer's remote address, or "" when
// no producer is connected
func (l *Listener) ProducerAddr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.producerAddr
}

// handleWebSocket upgrades a producer connection
func (l *Listener) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}

	l.mu.Lock()
	if l.producer != nil {
		log.Printf("New producer from %s displaces the current one", r.RemoteAddr)
		l.producer.Close()
	}
	l.producer = conn
	l.producerAddr = r.RemoteAddr
	l.mu.Unlock()

	log.Printf("Producer connected from %s", r.RemoteAddr)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.readFrames(conn)
	}()
}

// readFrames forwards producer frames until the connection dies
func (l *Listener) readFrames(conn *websocket.Conn) {
	defer func() {
		l.mu.Lock()
		if l.producer == conn {
			l.producer = nil
			l.producerAddr = ""
		}
		l.mu.Unlock()
		conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Producer read error: %v", err)
			} else {
				log.Printf("Producer disconnected")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			l.sink.OnPCMPacket(data, 0, len(data))
		case websocket.TextMessage:
			l.handleControl(data)
		}
	}
}

// handleControl routes text frames
func (l *Listener) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse control message: %v", err)
		return
	}

	switch msg.Type {
	case "track/flush":
		l.sink.OnTrackFlush()
	default:
		log.Printf("Unknown control message type: %s", msg.Type)
	}
}
