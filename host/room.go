package host

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 16

	// throttle intervals for high-rate streams
	arduinoEmitInterval = 50 * time.Millisecond
	gpsEmitInterval     = time.Second
	flushInterval       = 50 * time.Millisecond
)

// Commander is the room's handle on the board link.
type Commander interface {
	SendCommand(name string, params map[string]string) error
	State() ConnectionState
}

// wsMessage is the envelope exchanged with dashboard clients.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type buttonRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	State  string `json:"state,omitempty"`
}

type emergencyRequest struct {
	Type string `json:"type"`
}

var buttonCommands = map[string]string{
	"horn":            "HORN",
	"light":           "LIGHT",
	"indicator_left":  "IND_L",
	"indicator_right": "IND_R",
	"hazard":          "HAZARD",
}

// Room broadcasts hub events to every attached dashboard client and routes
// client button presses back to the board.
type Room struct {
	hub  *Hub
	link Commander
	gps  *GPSSource

	join    chan *client
	leave   chan *client
	inbound chan inboundMessage
	clients map[*client]bool
}

type inboundMessage struct {
	client *client
	raw    []byte
}

func NewRoom(hub *Hub, link Commander, gps *GPSSource) *Room {
	return &Room{
		hub:     hub,
		link:    link,
		gps:     gps,
		join:    make(chan *client),
		leave:   make(chan *client),
		inbound: make(chan inboundMessage),
		clients: make(map[*client]bool),
	}
}

// Run owns the client set; all broadcast and join/leave happens here so the
// hub's delivery context never blocks on a socket.
func (r *Room) Run(ctx context.Context) {
	sub := r.hub.Subscribe(TopicArduino, TopicGPS, TopicStatus, TopicAck, TopicAlert)
	defer sub.Close()

	arduinoThrottle := NewThrottle(arduinoEmitInterval)
	gpsThrottle := NewThrottle(gpsEmitInterval)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-r.join:
			r.clients[c] = true
			log.Info("dashboard client joined")
			r.greet(c)
		case c := <-r.leave:
			delete(r.clients, c)
			close(c.send)
			log.Info("dashboard client left")
		case ev := <-sub.C:
			switch ev.Topic {
			case TopicArduino:
				arduinoThrottle.MaybeEmit(ev, r.broadcast)
			case TopicGPS:
				gpsThrottle.MaybeEmit(ev, r.broadcast)
			default:
				r.broadcast(ev)
			}
		case <-ticker.C:
			arduinoThrottle.Flush(r.broadcast)
			gpsThrottle.Flush(r.broadcast)
		case msg := <-r.inbound:
			r.handleInbound(msg)
		}
	}
}

// greet sends the connection status plus cached latest values so a client
// is never blank until the next tick.
func (r *Room) greet(c *client) {
	gpsUp := r.gps != nil && r.gps.Connected()
	c.sendJSON("status", map[string]interface{}{
		"arduino_connected": r.link.State() == Connected,
		"gps_connected":     gpsUp,
	})
	if ev, ok := r.hub.Latest(TopicArduino); ok {
		c.sendJSON(ev.Topic.String(), ev.Data)
	}
	if ev, ok := r.hub.Latest(TopicGPS); ok {
		c.sendJSON(ev.Topic.String(), ev.Data)
	}
}

func (r *Room) broadcast(ev Event) {
	raw, err := encodeMessage(ev.Topic.String(), ev.Data)
	if err != nil {
		log.WithField("err", err).Warn("unable to encode event")
		return
	}
	for c := range r.clients {
		select {
		case c.send <- raw:
		default:
			log.Debug("dropping event for slow client")
		}
	}
}

func (r *Room) handleInbound(msg inboundMessage) {
	var m wsMessage
	if err := json.Unmarshal(msg.raw, &m); err != nil {
		log.WithField("err", err).Debug("dropping malformed client message")
		return
	}

	switch m.Event {
	case "button":
		var req buttonRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			log.WithField("err", err).Debug("dropping malformed button message")
			return
		}
		r.handleButton(msg.client, req)
	case "emergency":
		var req emergencyRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			log.WithField("err", err).Debug("dropping malformed emergency message")
			return
		}
		if req.Type == "" {
			req.Type = "stop"
		}
		log.WithField("type", req.Type).Warn("emergency triggered")
		if err := r.link.SendCommand("EMERGENCY", map[string]string{"type": req.Type}); err != nil {
			log.WithField("err", err).Error("unable to send emergency command")
		}
		r.hub.Publish(TopicAlert, Alert{
			Type:    "emergency",
			Message: "Emergency " + req.Type + " triggered",
		})
	default:
		log.WithField("event", m.Event).Debug("unknown client event")
	}
}

func (r *Room) handleButton(c *client, req buttonRequest) {
	cmd, ok := buttonCommands[req.ID]
	if !ok {
		c.sendJSON("ack", Ack{ID: req.ID, Status: "error", Extra: "unknown button: " + req.ID})
		return
	}

	state := "ON"
	if req.Action == "release" {
		state = "OFF"
	}
	err := r.link.SendCommand(cmd, map[string]string{"state": state})
	if err != nil {
		log.WithField("err", err).Warn("unable to send button command")
		c.sendJSON("ack", Ack{ID: req.ID, Status: "failed", Extra: err.Error()})
		return
	}
	c.sendJSON("ack", Ack{ID: req.ID, Status: "sent"})
}

func encodeMessage(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsMessage{Event: event, Data: raw})
}

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.WithField("err", err).Error("websocket upgrade failed")
		return
	}
	c := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
		room:   r,
	}
	r.join <- c
	defer func() { r.leave <- c }()
	go c.write()
	c.read()
}

type client struct {
	socket *websocket.Conn
	send   chan []byte
	room   *Room
}

func (c *client) read() {
	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			break
		}
		c.room.inbound <- inboundMessage{client: c, raw: raw}
	}
	_ = c.socket.Close()
}

func (c *client) write() {
	for msg := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	_ = c.socket.Close()
}

func (c *client) sendJSON(event string, data interface{}) {
	raw, err := encodeMessage(event, data)
	if err != nil {
		log.WithField("err", err).Warn("unable to encode message")
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}
