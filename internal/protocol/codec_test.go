package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Decode: control strings
// ---------------------------------------------------------------------------

func TestDecode_Ping(t *testing.T) {
	f, err := Decode([]byte("ping"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsPing() {
		t.Errorf("IsPing = false, want true")
	}
	if f.Event != nil {
		t.Errorf("Event = %#v, want nil", f.Event)
	}
}

func TestDecode_PongWithWhitespace(t *testing.T) {
	f, err := Decode([]byte(" pong\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsPong() {
		t.Errorf("IsPong = false, want true")
	}
}

// ---------------------------------------------------------------------------
// Decode: structured events
// ---------------------------------------------------------------------------

func TestDecode_TablesSnapshot(t *testing.T) {
	raw := `{"type":"tables_snapshot","tables":[
		{"id":3,"number":12,"status":"open","session":null},
		{"id":4,"number":14,"status":"occupied","session":{"members":[{"name":"Ana"}]}}
	]}`
	f, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, ok := f.Event.(TablesSnapshot)
	if !ok {
		t.Fatalf("Event type = %T, want TablesSnapshot", f.Event)
	}
	if len(snap.Tables) != 2 {
		t.Fatalf("len(Tables) = %d, want 2", len(snap.Tables))
	}
	if snap.Tables[0].Seated() {
		t.Errorf("table 3 Seated = true, want false for null session")
	}
	if !snap.Tables[1].Seated() {
		t.Errorf("table 4 Seated = false, want true")
	}
	if snap.Tables[1].Status != StatusOccupied {
		t.Errorf("table 4 Status = %q, want occupied", snap.Tables[1].Status)
	}
}

func TestDecode_EveryServerType(t *testing.T) {
	cases := map[string]string{
		TypeTablesSnapshot:        `{"type":"tables_snapshot","tables":[]}`,
		TypeTableUpdate:           `{"type":"table_update","table":{"id":1,"number":1,"status":"dirty"}}`,
		TypePendingWaiterRequests: `{"type":"pending_waiter_requests","requests":[]}`,
		TypeWaiterRequest:         `{"type":"waiter_request","request":{"id":"r1","request_type":"call_waiter"}}`,
		TypeWaiterRequestResolved: `{"type":"waiter_request_resolved","request_id":"r1"}`,
		TypeOrderNotification:     `{"type":"order_notification","order":{"order_id":7}}`,
		TypeOrderAcknowledged:     `{"type":"order_acknowledged","order_id":7}`,
		TypePendingOrders:         `{"type":"pending_orders","orders":[{"order_id":1}]}`,
		TypePendingOrder:          `{"type":"pending_order","order":{"order_id":2}}`,
		TypeOrderRemoved:          `{"type":"order_removed","order_id":2,"reason":"expired"}`,
		TypePOSRetrySuccess:       `{"type":"pos_retry_success","order_id":9}`,
		TypePOSRetryFailed:        `{"type":"pos_retry_failed","order_id":9,"error":"timeout"}`,
		TypeError:                 `{"type":"error","detail":"bad","code":"invalid_token"}`,
	}
	for typ, raw := range cases {
		f, err := Decode([]byte(raw))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", typ, err)
			continue
		}
		if f.Event == nil {
			t.Errorf("%s: Event is nil", typ)
			continue
		}
		if got := f.Event.EventType(); got != typ {
			t.Errorf("%s: EventType = %q", typ, got)
		}
	}
}

func TestDecode_ServerErrorFields(t *testing.T) {
	f, err := Decode([]byte(`{"type":"error","detail":"token expired","code":"invalid_token"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	se := f.Event.(ServerError)
	if se.Code != CodeInvalidToken {
		t.Errorf("Code = %q, want %q", se.Code, CodeInvalidToken)
	}
	if se.Detail != "token expired" {
		t.Errorf("Detail = %q", se.Detail)
	}
}

// ---------------------------------------------------------------------------
// Decode: faults
// ---------------------------------------------------------------------------

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"table":{}}`))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestDecode_WrongPayloadShape(t *testing.T) {
	_, err := Decode([]byte(`{"type":"table_update","table":"nope"}`))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestDecode_InvalidPayloadsAreMalformed(t *testing.T) {
	cases := map[string]string{
		"table_update without table":     `{"type":"table_update"}`,
		"table_update with null table":   `{"type":"table_update","table":null}`,
		"table_update with zero id":      `{"type":"table_update","table":{"number":1,"status":"open"}}`,
		"table_update with bad status":   `{"type":"table_update","table":{"id":4,"number":4,"status":"reserved"}}`,
		"snapshot without tables":        `{"type":"tables_snapshot"}`,
		"snapshot with bad table":        `{"type":"tables_snapshot","tables":[{"id":1,"status":"open"},{"id":2}]}`,
		"pending requests without list":  `{"type":"pending_waiter_requests"}`,
		"pending request with empty id":  `{"type":"pending_waiter_requests","requests":[{"request_type":"call_waiter"}]}`,
		"waiter_request without request": `{"type":"waiter_request"}`,
		"waiter_request with empty id":   `{"type":"waiter_request","request":{"id":"","request_type":"call_waiter"}}`,
		"resolved without request_id":    `{"type":"waiter_request_resolved"}`,
		"resolved with empty request_id": `{"type":"waiter_request_resolved","request_id":""}`,
		"order_notification no order":    `{"type":"order_notification"}`,
		"order_notification zero id":     `{"type":"order_notification","order":{"order_number":"A-1"}}`,
		"order_acknowledged no id":       `{"type":"order_acknowledged"}`,
		"pending_orders without list":    `{"type":"pending_orders"}`,
		"pending_orders with zero id":    `{"type":"pending_orders","orders":[{"order_id":1},{"order_id":0}]}`,
		"pending_order negative id":      `{"type":"pending_order","order":{"order_id":-2}}`,
		"order_removed zero id":          `{"type":"order_removed","order_id":0,"reason":"expired"}`,
		"pos_retry_success no id":        `{"type":"pos_retry_success"}`,
		"pos_retry_failed zero id":       `{"type":"pos_retry_failed","order_id":0,"error":"timeout"}`,
	}
	for name, raw := range cases {
		f, err := Decode([]byte(raw))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
		if f.Event != nil {
			t.Errorf("%s: Event = %#v, want nil", name, f.Event)
		}
	}
}

func TestDecode_EmptyCollectionsAreValid(t *testing.T) {
	for _, raw := range []string{
		`{"type":"tables_snapshot","tables":[]}`,
		`{"type":"pending_waiter_requests","requests":[]}`,
		`{"type":"pending_orders","orders":[]}`,
		`{"type":"error"}`,
	} {
		if _, err := Decode([]byte(raw)); err != nil {
			t.Errorf("%s: unexpected error: %v", raw, err)
		}
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"kitchen_fire"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
	if errors.Is(err, ErrMalformed) {
		t.Errorf("unknown type must not be reported as malformed")
	}
}

// ---------------------------------------------------------------------------
// Encode
// ---------------------------------------------------------------------------

func TestEncode_MoveTable(t *testing.T) {
	data, err := Encode(MoveTable{FromTableID: 3, ToTableID: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"action":"move_table","from_table_id":3,"to_table_id":5}`
	if string(data) != want {
		t.Errorf("Encode = %s, want %s", data, want)
	}
}

func TestEncode_EveryCommandCarriesAction(t *testing.T) {
	cmds := []Command{
		CloseTable{TableID: 1},
		DisableTable{TableID: 1},
		EnableTable{TableID: 1},
		RestoreTable{TableID: 1},
		MoveTable{FromTableID: 1, ToTableID: 2},
		ResolveWaiterRequest{RequestID: "r1"},
		RetryPOSPush{OrderID: 4},
	}
	for _, cmd := range cmds {
		data, err := Encode(cmd)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", cmd.Action(), err)
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Errorf("%s: output is not JSON: %v", cmd.Action(), err)
			continue
		}
		if m["action"] != cmd.Action() {
			t.Errorf("%s: action = %v", cmd.Action(), m["action"])
		}
	}
}

func TestEncode_Nil(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Fatal("expected error for nil command")
	}
}

// ---------------------------------------------------------------------------
// Derived ids and entries
// ---------------------------------------------------------------------------

func TestDerivedIDs(t *testing.T) {
	if got := OrderAlertID(7); got != "order_7" {
		t.Errorf("OrderAlertID(7) = %q", got)
	}
	if got := PendingOrderID(7); got != "pending_order_7" {
		t.Errorf("PendingOrderID(7) = %q", got)
	}
}

func TestPendingOrderEntry_CarriesPendingFields(t *testing.T) {
	e := PendingOrderEntry(Order{OrderID: 8, TableID: 2, CustomerName: "Lee", Total: 42.5, SpecialInstructions: "no nuts"})
	if e.ID != "pending_order_8" || e.Kind != EntryPendingOrder {
		t.Errorf("entry = %+v", e)
	}
	if e.CustomerName != "Lee" || e.Total != 42.5 || e.SpecialInstructions != "no nuts" {
		t.Errorf("pending fields not copied: %+v", e)
	}
}

func TestEntryLabel(t *testing.T) {
	cases := []struct {
		entry NotificationEntry
		want  string
	}{
		{NotificationEntry{Kind: EntryWaiterRequest, RequestType: RequestCallWaiter}, "Call waiter"},
		{NotificationEntry{Kind: EntryWaiterRequest, RequestType: RequestAskForBill}, "Bill requested"},
		{NotificationEntry{Kind: EntryOrderAlert}, "New order"},
		{NotificationEntry{Kind: EntryPendingOrder}, "Pending order"},
	}
	for _, tc := range cases {
		if got := tc.entry.Label(); got != tc.want {
			t.Errorf("Label(%+v) = %q, want %q", tc.entry, got, tc.want)
		}
	}
}

func TestTableStatusValid(t *testing.T) {
	for _, s := range []TableStatus{StatusOpen, StatusOccupied, StatusDisabled, StatusDirty} {
		if !s.Valid() {
			t.Errorf("%q.Valid() = false", s)
		}
	}
	if TableStatus("reserved").Valid() {
		t.Error("reserved.Valid() = true, want false")
	}
}
