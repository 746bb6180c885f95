package medium

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	uuidLib "github.com/google/uuid"
	"github.com/gorilla/websocket"

	"passbridge/pkg/entities"
	"passbridge/utilities"
)

const pingInterval = time.Second * 30

func Upgrade() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Socket fans pass update events out to connected merchant dashboards. A
// merchant can hold several connections (multiple open dashboards); a dead
// connection only drops itself.
type Socket struct {
	*sync.RWMutex
	ConnSet map[string][]*ConnObject
}

type ConnObject struct {
	ID    string
	Conn  *websocket.Conn
	Close chan bool
}

func NewSocket() *Socket {
	return &Socket{
		RWMutex: new(sync.RWMutex),
		ConnSet: make(map[string][]*ConnObject),
	}
}

func (s *Socket) Add(merchantID string, newConn *websocket.Conn) *ConnObject {
	s.Lock()
	defer s.Unlock()

	log := utilities.NewLoggerWithFields(
		"websocket.Add", map[string]interface{}{
			"merchant": merchantID,
		},
	)

	connObj := &ConnObject{
		Conn:  newConn,
		Close: make(chan bool),
		ID:    uuidLib.NewString(),
	}

	connObj.Conn.SetCloseHandler(
		func(code int, text string) error {
			close(connObj.Close)
			log.Infof("Received close message with code %d and text %s for conn %s", code, text, connObj.ID)
			return nil
		},
	)

	go s.pinger(merchantID, connObj)

	s.ConnSet[merchantID] = append(s.ConnSet[merchantID], connObj)
	log.Debugf("Connection %s added", connObj.ID)

	return connObj
}

func (s *Socket) Remove(merchantID, connID string) {
	s.Lock()
	defer s.Unlock()

	conns := s.ConnSet[merchantID]
	for i, connObj := range conns {
		if connObj.ID != connID {
			continue
		}

		_ = connObj.Conn.Close()
		s.ConnSet[merchantID] = append(conns[:i], conns[i+1:]...)
		break
	}

	if len(s.ConnSet[merchantID]) == 0 {
		delete(s.ConnSet, merchantID)
	}
}

// Broadcast sends the event to every connection of the merchant. Send
// failures drop the failing connection only.
func (s *Socket) Broadcast(event entities.UpdateEvent) {
	log := utilities.NewLoggerWithFields(
		"websocket.Broadcast", map[string]interface{}{
			"merchant": event.MerchantID,
			"serial":   event.SerialNumber,
		},
	)

	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("failed to encode update event")
		return
	}

	s.RLock()
	conns := make([]*ConnObject, len(s.ConnSet[event.MerchantID]))
	copy(conns, s.ConnSet[event.MerchantID])
	s.RUnlock()

	for _, connObj := range conns {
		if err = connObj.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.WithError(err).Errorf("failed to write to conn %s, dropping it", connObj.ID)
			s.Remove(event.MerchantID, connObj.ID)
		}
	}
}

func (s *Socket) pinger(merchantID string, connObj *ConnObject) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-connObj.Close:
			s.Remove(merchantID, connObj.ID)
			return
		case <-ticker.C:
			if err := connObj.Conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(time.Second*5),
			); err != nil {
				s.Remove(merchantID, connObj.ID)
				return
			}
		}
	}
}
