// Package observer serves the websocket feed for an external viewer.
// The viewer reports its pose, which recenters the streaming window,
// and receives periodic status frames back.
package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeyousef/voxelstream/internal/observerproto"
	"github.com/codeyousef/voxelstream/internal/sim/block"
	"github.com/codeyousef/voxelstream/internal/sim/chunk"
	"github.com/codeyousef/voxelstream/internal/sim/coords"
	"github.com/codeyousef/voxelstream/internal/sim/world"
)

// statusEvery is the cadence of STATUS frames to a connected viewer.
const statusEvery = 500 * time.Millisecond

// Server implements world.ObserverProvider: the world polls Pose once per
// frame. Construct it before the world, then call SetWorld.
type Server struct {
	log *log.Logger

	mu    sync.Mutex
	pose  world.Pose
	world *world.World

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// SetWorld wires the world after construction. The provider is passed to
// world.New before the world exists, so this runs second.
func (s *Server) SetWorld(w *world.World) {
	s.mu.Lock()
	s.world = w
	s.mu.Unlock()
}

// SetPose seeds the pose, typically from a restored snapshot, so the
// streaming window starts where the observer left off.
func (s *Server) SetPose(p world.Pose) {
	s.mu.Lock()
	s.pose = p
	s.mu.Unlock()
}

// Pose returns the most recently reported observer pose.
func (s *Server) Pose() world.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		s.mu.Lock()
		w := s.world
		s.mu.Unlock()
		if w == nil {
			http.Error(rw, "world not ready", http.StatusServiceUnavailable)
			return
		}

		cfg := w.Config()
		palette := make([]string, 0, block.Count)
		for t := block.Type(0); t < block.Count; t++ {
			palette = append(palette, t.String())
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            w.CurrentTick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:   cfg.TickRateHz,
				ChunkSize:    coords.ChunkSize,
				Height:       chunk.SizeY,
				Seed:         cfg.Seed,
				StreamRadius: cfg.StreamRadius,
			},
			BlockPalette: palette,
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send HELLO first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello observerproto.HelloMsg
		if err := json.Unmarshal(msg, &hello); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad hello"), time.Now().Add(time.Second))
			return
		}
		if hello.Type != observerproto.TypeHello || hello.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		if s.log != nil {
			s.log.Printf("observer %s connected from %s", sid, r.RemoteAddr)
		}

		done := make(chan struct{})
		defer close(done)

		// Writer goroutine: periodic STATUS frames.
		go func() {
			t := time.NewTicker(statusEvery)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					b, err := json.Marshal(s.status())
					if err != nil {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop: POSE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var pose observerproto.PoseMsg
			if err := json.Unmarshal(msg, &pose); err != nil {
				continue
			}
			if pose.Type != observerproto.TypePose || pose.ProtocolVersion != observerproto.Version {
				continue
			}
			s.SetPose(world.Pose{
				X: pose.X, Y: pose.Y, Z: pose.Z,
				Pitch: pose.Pitch, Yaw: pose.Yaw,
				Flight: pose.Flight,
			})
		}

		if s.log != nil {
			s.log.Printf("observer %s disconnected", sid)
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func (s *Server) status() observerproto.StatusMsg {
	s.mu.Lock()
	w := s.world
	s.mu.Unlock()
	st := observerproto.StatusMsg{
		Type:            observerproto.TypeStatus,
		ProtocolVersion: observerproto.Version,
	}
	if w == nil {
		return st
	}
	st.Tick = w.CurrentTick()
	st.LoadedChunks = w.LoadedChunkCount()
	st.QueuedGen = w.QueuedGeneration()
	done, total := w.Progress()
	st.LoadDone, st.LoadTarget = int(done), int(total)
	rdone, rtarget := w.RegenProgress()
	st.RegenDone, st.RegenTarget = int(rdone), int(rtarget)
	return st
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
