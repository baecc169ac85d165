package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/autoride/internal/realtime"
)

const (
	wsWriteWait     = 10 * time.Second
	wsMaxMessage    = 4096
	wsReportTimeout = 5 * time.Second
	// the gateway pings every realtime.DefaultPingInterval, well inside this
	wsPongWait = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// riders and drivers connect from mobile apps on other origins
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsSink adapts a websocket connection to realtime.Sink. Only the client's
// writer goroutine calls Send and Close, which satisfies gorilla's single
// writer rule.
type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(ev realtime.Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(ev)
}

// Ping implements realtime.Pinger.
func (s wsSink) Ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (s wsSink) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
	return s.conn.Close()
}

// handleWS serves the realtime channel. A driver token is only needed for
// driver-location messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	driverID := s.optionalDriver(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	clientID := requestID(r.Context())
	if clientID == "" {
		clientID = newID()
	}
	// replaces the http.Server read deadline, which survives the hijack;
	// every pong pushes it out again
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	client := s.Gateway.Connect(clientID, wsSink{conn: conn})
	defer s.Gateway.Disconnect(client)

	conn.SetReadLimit(wsMaxMessage)
	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed", "client_id", clientID, "error", err)
			}
			return
		}
		if err := s.handleWSEvent(client, driverID, ev); err != nil {
			client.Send(realtime.ErrorEvent(err.Error()))
		}
	}
}

var (
	errUnauthorizedLocation = errors.New("driver-location requires a driver token")
	errNoLocation           = errors.New("no driver location for ride yet")
)

func (s *Server) handleWSEvent(c *realtime.Client, driverID string, ev realtime.Event) error {
	switch ev.Type {
	case realtime.TypeJoinRide:
		return s.Gateway.Subscribe(c, ev.RideID)
	case realtime.TypeLeaveRide:
		s.Gateway.Unsubscribe(c, ev.RideID)
		return nil
	case realtime.TypeChat:
		if ev.RideID == "" {
			return realtime.ErrMissingRideID
		}
		s.Gateway.PublishChat(ev.RideID, ev.From, ev.Text)
		return nil
	case realtime.TypeGetDriverLocation:
		if ev.RideID == "" {
			return realtime.ErrMissingRideID
		}
		if last, ok := s.Gateway.LastLocation(ev.RideID); ok {
			c.Send(last)
			return nil
		}
		return errNoLocation
	case realtime.TypeDriverLocation:
		if driverID == "" {
			return errUnauthorizedLocation
		}
		if ev.DriverID != "" && ev.DriverID != driverID {
			return errUnauthorizedLocation
		}
		lat, lng := ev.Coords()
		ctx, cancel := context.WithTimeout(context.Background(), wsReportTimeout)
		defer cancel()
		_, err := s.Tracker.Report(ctx, driverID, lat, lng, ev.RideID)
		return err
	default:
		return errors.New("unknown event type " + ev.Type)
	}
}
