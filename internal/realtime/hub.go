package realtime

// Hub owns the websocket clients, grouped by party, and fans messages out
// to everyone in a party's room.
type Hub struct {
	// Registered clients by party id.
	rooms map[string]map[*Client]bool

	// Inbound messages to fan out to one party's room.
	broadcast chan Message

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client
}

// Message is one payload addressed to a party's room.
type Message struct {
	PartyID string
	Data    []byte
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Broadcast queues data for every client in partyID's room.
func (h *Hub) Broadcast(partyID string, data []byte) {
	h.broadcast <- Message{PartyID: partyID, Data: data}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room := h.rooms[client.partyID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.partyID] = room
			}
			room[client] = true

		case client := <-h.unregister:
			if room, ok := h.rooms[client.partyID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					_ = client.conn.Close()
					if len(room) == 0 {
						delete(h.rooms, client.partyID)
					}
				}
			}

		case message := <-h.broadcast:
			room := h.rooms[message.PartyID]
			for client := range room {
				select {
				case client.send <- message.Data:
				default:
					delete(room, client)
					close(client.send)
					_ = client.conn.Close()
				}
			}
			if len(room) == 0 {
				delete(h.rooms, message.PartyID)
			}
		}
	}
}
