package realtime

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func testHub() *Hub {
	return NewHub(zerolog.New(os.Stdout))
}

type fakeConn struct{}

func (fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, nil }
func (fakeConn) WriteMessage(int, []byte) error    { return nil }
func (fakeConn) Close() error                      { return nil }

func newTestClient() *Client {
	return NewClient(fakeConn{})
}

func drain(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	default:
		t.Fatal("expected an event in the send buffer")
	}
	return Event{}
}

func TestJoinAddsToAllRequestedRooms(t *testing.T) {
	hub := testHub()
	client := newTestClient()
	hub.Register(client)

	userID := uuid.New()
	hub.Join(client, JoinParams{City: "Metro", Role: "donor", UserID: userID.String()})

	if hub.RoomCount(CityRoom("Metro")) != 1 {
		t.Error("expected client in city room")
	}
	if hub.RoomCount(RoleRoom("donor")) != 1 {
		t.Error("expected client in role room")
	}
	if hub.RoomCount(UserRoom(userID)) != 1 {
		t.Error("expected client in user room")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := testHub()
	client := newTestClient()
	hub.Register(client)

	hub.Join(client, JoinParams{City: "Metro"})
	hub.Join(client, JoinParams{City: "Metro"})

	if got := hub.RoomCount(CityRoom("Metro")); got != 1 {
		t.Errorf("expected 1 member after repeated join, got %d", got)
	}
	if got := len(client.Rooms()); got != 1 {
		t.Errorf("expected 1 room on client, got %d", got)
	}
}

func TestJoinUnregisteredClientIsNoOp(t *testing.T) {
	hub := testHub()
	client := newTestClient()

	hub.Join(client, JoinParams{City: "Metro"})

	if got := hub.RoomCount(CityRoom("Metro")); got != 0 {
		t.Errorf("expected no membership for unregistered client, got %d", got)
	}
}

func TestPublishDeliversToRoomMembersOnly(t *testing.T) {
	hub := testHub()
	inRoom := newTestClient()
	outOfRoom := newTestClient()
	hub.Register(inRoom)
	hub.Register(outOfRoom)
	hub.Join(inRoom, JoinParams{City: "Metro"})
	hub.Join(outOfRoom, JoinParams{City: "Gotham"})

	hub.Publish(CityRoom("Metro"), "emergency.created", map[string]string{"bloodType": "O+"})

	ev := drain(t, inRoom)
	if ev.Event != "emergency.created" {
		t.Errorf("expected emergency.created, got %s", ev.Event)
	}
	if ev.Room != CityRoom("Metro") {
		t.Errorf("expected room city:Metro, got %s", ev.Room)
	}

	select {
	case <-outOfRoom.Send:
		t.Error("client in another room should not receive the event")
	default:
	}
}

func TestPublishEmptyRoomIsNoOp(t *testing.T) {
	hub := testHub()
	// Nothing joined; must not panic or block.
	hub.Publish(CityRoom("Nowhere"), "emergency.created", map[string]string{"x": "y"})
}

func TestPublishSkipsFullClientBuffer(t *testing.T) {
	hub := testHub()
	client := newTestClient()
	hub.Register(client)
	hub.Join(client, JoinParams{Role: "bloodbank"})

	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("{}")
	}

	// Must not block even though the buffer is full.
	hub.Publish(RoleRoom("bloodbank"), "blood.request.created", map[string]string{})
}

func TestDisconnectRemovesFromAllRooms(t *testing.T) {
	hub := testHub()
	client := newTestClient()
	hub.Register(client)
	hub.Join(client, JoinParams{City: "Metro", Role: "donor"})

	hub.Disconnect(client)

	if hub.ClientCount() != 0 {
		t.Error("expected no connected clients")
	}
	if hub.RoomCount(CityRoom("Metro")) != 0 || hub.RoomCount(RoleRoom("donor")) != 0 {
		t.Error("expected empty rooms after disconnect")
	}

	// Second disconnect must be a no-op, not a double close.
	hub.Disconnect(client)
}

func TestPublishAfterDisconnectNotDelivered(t *testing.T) {
	hub := testHub()
	client := newTestClient()
	hub.Register(client)
	hub.Join(client, JoinParams{City: "Metro"})
	hub.Disconnect(client)

	hub.Publish(CityRoom("Metro"), "emergency.created", map[string]string{})

	if _, ok := <-client.Send; ok {
		t.Error("expected closed send channel with no buffered event")
	}
}
