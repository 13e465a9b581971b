package api

import (
	"log"
	"net/http"

	"github.com/Domenick1991/carpool/internal/docstore"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RideStream pushes live updates of a single ride document over a
// websocket, backed by the store's change subscription.
type RideStream struct {
	store docstore.Store
}

func NewRideStream(store docstore.Store) *RideStream {
	return &RideStream{store: store}
}

func (s *RideStream) Register(router *gin.RouterGroup) {
	router.GET("/rides/:id", s.stream)
}

func (s *RideStream) stream(c *gin.Context) {
	rideID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events := make(chan docstore.Event, 16)
	where := []docstore.Where{{Field: "id", Op: docstore.OpEqual, Value: rideID}}
	cancel, err := s.store.Subscribe(c.Request.Context(), "rides", where, func(ev docstore.Event) {
		select {
		case events <- ev:
		default:
			// Slow consumer, drop the event; the next update carries
			// the full document anyway.
		}
	})
	if err != nil {
		log.Printf("ws: subscribe ride %s: %v", rideID, err)
		return
	}
	defer cancel()

	// Reader goroutine just watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
