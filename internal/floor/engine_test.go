package floor

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(EngineOpts{
		Store: NewStore(),
		Now:   func() time.Time { return time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func count(ns []notice.Notice, k notice.Kind) int {
	n := 0
	for _, x := range ns {
		if x.Kind == k {
			n++
		}
	}
	return n
}

func queueIDs(s *Store) []string {
	var ids []string
	for _, e := range s.Queue() {
		ids = append(ids, e.ID)
	}
	return ids
}

func waiter(id string, table int) protocol.WaiterRequestEvent {
	return protocol.WaiterRequestEvent{Request: protocol.WaiterRequest{
		ID: id, RequestType: protocol.RequestCallWaiter, TableID: table, TableNumber: table * 10, MemberName: "Ana",
	}}
}

func TestNewEngine_RequiresStore(t *testing.T) {
	if _, err := NewEngine(EngineOpts{}); err == nil {
		t.Fatal("expected error for missing store")
	}
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

func TestApply_SnapshotReplacesAllTables(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.TablesSnapshot{Tables: []protocol.Table{
		{ID: 1, Number: 1, Status: protocol.StatusOpen},
		{ID: 2, Number: 2, Status: protocol.StatusDirty},
	}})
	ns := e.Apply(protocol.TablesSnapshot{Tables: []protocol.Table{
		{ID: 2, Number: 2, Status: protocol.StatusOpen},
		{ID: 3, Number: 3, Status: protocol.StatusOpen},
	}})

	if _, ok := e.Store().Table(1); ok {
		t.Error("table 1 survived a snapshot that did not contain it")
	}
	if got := e.Store().Status(2); got != protocol.StatusOpen {
		t.Errorf("table 2 status = %q, want open", got)
	}
	if e.Store().TableCount() != 2 {
		t.Errorf("TableCount = %d, want 2", e.Store().TableCount())
	}
	if count(ns, notice.KindTablesReplaced) != 1 {
		t.Errorf("tables_replaced notices = %d, want 1", count(ns, notice.KindTablesReplaced))
	}
	if count(ns, notice.KindAlertSound) != 0 {
		t.Error("snapshot must not fire the occupied alert")
	}
}

func TestApply_TableUpdatePatchesOnlyThatTable(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.TablesSnapshot{Tables: []protocol.Table{
		{ID: 1, Number: 1, Status: protocol.StatusOpen},
		{ID: 2, Number: 2, Status: protocol.StatusDirty},
	}})
	e.Apply(protocol.TableUpdate{Table: protocol.Table{ID: 2, Number: 2, Status: protocol.StatusDisabled}})

	if got := e.Store().Status(1); got != protocol.StatusOpen {
		t.Errorf("table 1 status = %q, want untouched open", got)
	}
	if got := e.Store().Status(2); got != protocol.StatusDisabled {
		t.Errorf("table 2 status = %q, want disabled", got)
	}
}

func TestApply_OpenToOccupiedFiresAlertOnce(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.TablesSnapshot{Tables: []protocol.Table{{ID: 3, Number: 7, Status: protocol.StatusOpen}}})

	ns := e.Apply(protocol.TableUpdate{Table: protocol.Table{
		ID: 3, Number: 7, Status: protocol.StatusOccupied, Session: json.RawMessage(`{"members":[]}`),
	}})
	if got := count(ns, notice.KindAlertSound); got != 1 {
		t.Errorf("alert_sound = %d, want 1", got)
	}
	if got := count(ns, notice.KindTableOccupied); got != 1 {
		t.Errorf("table_occupied = %d, want 1", got)
	}

	// Already occupied: a second update is not a transition.
	ns = e.Apply(protocol.TableUpdate{Table: protocol.Table{ID: 3, Number: 7, Status: protocol.StatusOccupied}})
	if got := count(ns, notice.KindAlertSound); got != 0 {
		t.Errorf("alert_sound on occupied->occupied = %d, want 0", got)
	}
}

func TestApply_DirtyToDisabledDoesNotAlert(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.TablesSnapshot{Tables: []protocol.Table{{ID: 3, Number: 7, Status: protocol.StatusDirty}}})
	ns := e.Apply(protocol.TableUpdate{Table: protocol.Table{ID: 3, Number: 7, Status: protocol.StatusDisabled}})
	if got := count(ns, notice.KindAlertSound); got != 0 {
		t.Errorf("alert_sound = %d, want 0", got)
	}
	if got := count(ns, notice.KindTableUpdated); got != 1 {
		t.Errorf("table_updated = %d, want 1", got)
	}
}

func TestApply_TableUpdateOrderIndependentOfBatching(t *testing.T) {
	updates := []protocol.TableUpdate{
		{Table: protocol.Table{ID: 1, Number: 1, Status: protocol.StatusOccupied}},
		{Table: protocol.Table{ID: 2, Number: 2, Status: protocol.StatusDirty}},
		{Table: protocol.Table{ID: 1, Number: 1, Status: protocol.StatusDirty}},
		{Table: protocol.Table{ID: 2, Number: 2, Status: protocol.StatusOpen}},
		{Table: protocol.Table{ID: 1, Number: 1, Status: protocol.StatusOpen}},
	}
	base := []protocol.Table{
		{ID: 1, Number: 1, Status: protocol.StatusOpen},
		{ID: 2, Number: 2, Status: protocol.StatusOpen},
	}

	one := newTestEngine(t)
	one.Apply(protocol.TablesSnapshot{Tables: base})
	for _, u := range updates {
		one.Apply(u)
	}

	// Same sequence, split into two batches applied by separate passes.
	two := newTestEngine(t)
	two.Apply(protocol.TablesSnapshot{Tables: base})
	for _, batch := range [][]protocol.TableUpdate{updates[:2], updates[2:]} {
		for _, u := range batch {
			two.Apply(u)
		}
	}

	if !reflect.DeepEqual(one.Store().Tables(), two.Store().Tables()) {
		t.Errorf("batched result differs:\n one: %+v\n two: %+v", one.Store().Tables(), two.Store().Tables())
	}
	if got := one.Store().Status(1); got != protocol.StatusOpen {
		t.Errorf("table 1 = %q, want last write open", got)
	}
}

func TestApply_TableUpdateForUnknownTableInserts(t *testing.T) {
	e := newTestEngine(t)
	ns := e.Apply(protocol.TableUpdate{Table: protocol.Table{ID: 9, Number: 9, Status: protocol.StatusOccupied}})
	if _, ok := e.Store().Table(9); !ok {
		t.Error("table 9 not stored")
	}
	if count(ns, notice.KindAlertSound) != 0 {
		t.Error("no previous status, so no transition alert expected")
	}
}

func TestTables_OrderedByNumber(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.TablesSnapshot{Tables: []protocol.Table{
		{ID: 1, Number: 30}, {ID: 2, Number: 10}, {ID: 3, Number: 20},
	}})
	var got []int
	for _, tb := range e.Store().Tables() {
		got = append(got, tb.Number)
	}
	if !reflect.DeepEqual(got, []int{10, 20, 30}) {
		t.Errorf("numbers = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Notification queue
// ---------------------------------------------------------------------------

func TestApply_WaiterRequestsAreFIFO(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(waiter("A", 1))
	e.Apply(waiter("B", 2))
	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("queue = %v, want [A B]", got)
	}

	e.Apply(protocol.WaiterRequestResolved{RequestID: "A"})
	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("queue = %v, want [B]", got)
	}

	ns := e.Apply(protocol.WaiterRequestResolved{RequestID: "missing"})
	if len(ns) != 0 {
		t.Errorf("resolving unknown id produced notices: %+v", ns)
	}
	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("queue = %v, want unchanged [B]", got)
	}
}

func TestApply_WaiterRequestSignals(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.TablesSnapshot{})
	ns := e.Apply(protocol.WaiterRequestEvent{Request: protocol.WaiterRequest{
		ID: "r1", RequestType: protocol.RequestAskForBill, TableID: 4, TableNumber: 12, MemberName: "Kim",
	}})
	if count(ns, notice.KindAlertSound) != 1 {
		t.Errorf("alert_sound = %d, want 1", count(ns, notice.KindAlertSound))
	}
	var toast notice.Notice
	for _, n := range ns {
		if n.Kind == notice.KindToast {
			toast = n
		}
	}
	if toast.Message != "Bill requested: table 12 (Kim)" {
		t.Errorf("toast message = %q", toast.Message)
	}
	if toast.TTL != DefaultToastTTL {
		t.Errorf("toast TTL = %v, want %v", toast.TTL, DefaultToastTTL)
	}
}

func TestApply_DuplicateWaiterRequestKeepsIDsUnique(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(waiter("A", 1))
	ns := e.Apply(waiter("A", 1))
	if e.Store().QueueLen() != 1 {
		t.Errorf("QueueLen = %d, want 1", e.Store().QueueLen())
	}
	if count(ns, notice.KindAlertSound) != 0 {
		t.Error("duplicate request must not alert again")
	}
}

func TestApply_PendingWaiterRequestsReplacesQueue(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(waiter("old", 1))
	e.Apply(protocol.PendingWaiterRequests{Requests: []protocol.WaiterRequest{
		{ID: "x", TableID: 1}, {ID: "y", TableID: 2}, {ID: "x", TableID: 1},
	}})
	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("queue = %v, want [x y]", got)
	}
	if e.Store().HasEntry("old") {
		t.Error("old entry survived wholesale replace")
	}
}

func TestApply_OrderNotificationIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ev := protocol.OrderNotification{Order: protocol.Order{OrderID: 7, OrderNumber: "A7", TableID: 3, TableNumber: 5}}
	first := e.Apply(ev)
	second := e.Apply(ev)

	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, []string{"order_7"}) {
		t.Errorf("queue = %v, want [order_7]", got)
	}
	if count(first, notice.KindAlertSound) != 1 {
		t.Error("first delivery should alert")
	}
	if len(second) != 0 {
		t.Errorf("redelivery produced notices: %+v", second)
	}
}

func TestApply_OrderAcknowledgedRemovesAlert(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(waiter("A", 1))
	e.Apply(protocol.OrderNotification{Order: protocol.Order{OrderID: 7}})
	e.Apply(protocol.OrderAcknowledged{OrderID: 7})
	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("queue = %v, want [A]", got)
	}
}

func TestApply_OrderAcknowledgedForUnknownOrderIsNoop(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(waiter("A", 1))
	ns := e.Apply(protocol.OrderAcknowledged{OrderID: 99})
	if len(ns) != 0 {
		t.Errorf("notices = %+v, want none", ns)
	}
	if e.Store().QueueLen() != 1 {
		t.Errorf("QueueLen = %d, want 1", e.Store().QueueLen())
	}
}

func TestApply_PendingOrderAndRemoval(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.PendingOrderEvent{Order: protocol.Order{OrderID: 5, CustomerName: "Ola"}})
	e.Apply(protocol.PendingOrderEvent{Order: protocol.Order{OrderID: 5, CustomerName: "Ola"}})
	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, []string{"pending_order_5"}) {
		t.Fatalf("queue = %v, want [pending_order_5]", got)
	}

	ns := e.Apply(protocol.OrderRemoved{OrderID: 5, Reason: "expired"})
	if e.Store().QueueLen() != 0 {
		t.Errorf("QueueLen = %d, want 0", e.Store().QueueLen())
	}
	last := ns[len(ns)-1]
	if last.Kind != notice.KindToast || last.Message != "Order 5 expired before confirmation" {
		t.Errorf("last notice = %+v", last)
	}
}

func TestApply_PendingOrdersBulkMergesWithoutDuplicates(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(waiter("A", 1))
	e.Apply(protocol.PendingOrderEvent{Order: protocol.Order{OrderID: 1}})
	ns := e.Apply(protocol.PendingOrders{Orders: []protocol.Order{{OrderID: 1}, {OrderID: 2}, {OrderID: 3}}})

	want := []string{"A", "pending_order_1", "pending_order_2", "pending_order_3"}
	if got := queueIDs(e.Store()); !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
	if count(ns, notice.KindPendingOrder) != 2 {
		t.Errorf("pending_order notices = %d, want 2", count(ns, notice.KindPendingOrder))
	}
}

// ---------------------------------------------------------------------------
// Notification-only events
// ---------------------------------------------------------------------------

func TestApply_POSRetryOutcomesDoNotMutate(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(waiter("A", 1))
	before := e.Store().Queue()

	ok := e.Apply(protocol.POSRetrySuccess{OrderID: 3})
	bad := e.Apply(protocol.POSRetryFailed{OrderID: 3, Error: "POS offline"})

	if !reflect.DeepEqual(before, e.Store().Queue()) {
		t.Error("POS retry events changed the queue")
	}
	if ok[0].Kind != notice.KindPOSRetry || ok[0].Level != notice.LevelSuccess {
		t.Errorf("success notice = %+v", ok[0])
	}
	if bad[0].Level != notice.LevelError || bad[0].Message != "POS retry for order 3 failed: POS offline" {
		t.Errorf("failure notice = %+v", bad[0])
	}
}

func TestApply_ServerErrorInvalidTokenRequestsLogout(t *testing.T) {
	e := newTestEngine(t)
	ns := e.Apply(protocol.ServerError{Detail: "session expired", Code: protocol.CodeInvalidToken})
	if count(ns, notice.KindServerError) != 1 {
		t.Error("expected server_error notice")
	}
	if count(ns, notice.KindForceLogout) != 1 {
		t.Error("expected force_logout notice")
	}

	ns = e.Apply(protocol.ServerError{Detail: "table busy"})
	if count(ns, notice.KindForceLogout) != 0 {
		t.Error("ordinary errors must not force logout")
	}
}

func TestApply_NilEventIsIgnored(t *testing.T) {
	e := newTestEngine(t)
	if ns := e.Apply(nil); len(ns) != 0 {
		t.Errorf("notices = %+v, want none", ns)
	}
}

// ---------------------------------------------------------------------------
// Scenario: snapshot then occupancy
// ---------------------------------------------------------------------------

func TestScenario_SnapshotThenOccupied(t *testing.T) {
	e := newTestEngine(t)
	e.Apply(protocol.TablesSnapshot{Tables: []protocol.Table{
		{ID: 3, Number: 3, Status: protocol.StatusOpen},
		{ID: 4, Number: 4, Status: protocol.StatusDirty},
	}})
	ns := e.Apply(protocol.TableUpdate{Table: protocol.Table{
		ID: 3, Number: 3, Status: protocol.StatusOccupied, Session: json.RawMessage(`{"members":[{"name":"Ana"}]}`),
	}})

	t3, _ := e.Store().Table(3)
	if t3.Status != protocol.StatusOccupied || !t3.Seated() {
		t.Errorf("table 3 = %+v, want occupied with session", t3)
	}
	if count(ns, notice.KindAlertSound) != 1 {
		t.Errorf("alert_sound = %d, want 1", count(ns, notice.KindAlertSound))
	}
	if got := e.Store().Status(4); got != protocol.StatusDirty {
		t.Errorf("table 4 = %q, want untouched dirty", got)
	}
}
