package surface

import (
	"context"
	"errors"
	"testing"

	"github.com/duskfolk/duskfolk/internal/fleet"
)

func TestDispatchRoutesToHandler(t *testing.T) {
	d := NewDispatcher()
	err := d.Register(KindAgentStatus, Typed(func(ctx context.Context, req AgentRequest) (string, error) {
		return "status of " + req.AgentID, nil
	}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	resp, err := d.Dispatch(context.Background(), KindAgentStatus, AgentRequest{AgentID: "mira"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp != "status of mira" {
		t.Errorf("resp = %v", resp)
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Dispatch(context.Background(), Kind("agent.teleport"), nil)
	if err == nil {
		t.Fatal("unknown kind must fail")
	}
	if CodeOf(err) != InvalidArgument {
		t.Errorf("code = %s, want invalid_argument", CodeOf(err))
	}
}

func TestDispatchRejectsWrongPayloadType(t *testing.T) {
	d := NewDispatcher()
	if err := d.Register(KindAgentStatus, Typed(func(ctx context.Context, req AgentRequest) (string, error) {
		return "", nil
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := d.Dispatch(context.Background(), KindAgentStatus, "mira")
	if CodeOf(err) != InvalidArgument {
		t.Errorf("wrong payload type: %v (code %s)", err, CodeOf(err))
	}
}

func TestDispatchStampsOperationAndCode(t *testing.T) {
	d := NewDispatcher()
	if err := d.Register(KindAgentAction, Typed(func(ctx context.Context, req ActionRequest) (any, error) {
		return nil, fleet.ErrAgentNotFound
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := d.Dispatch(context.Background(), KindAgentAction, ActionRequest{AgentID: "ghost"})
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if se.Op != KindAgentAction || se.Code != NotFound {
		t.Errorf("stamped = %+v", se)
	}
	if !errors.Is(err, fleet.ErrAgentNotFound) {
		t.Error("cause lost through dispatch")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	d := NewDispatcher()
	h := Typed(func(ctx context.Context, req AgentRequest) (any, error) { return nil, nil })
	if err := d.Register(KindAgentList, h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := d.Register(KindAgentList, h); err == nil {
		t.Error("duplicate registration must fail")
	}
}

func TestKindsSorted(t *testing.T) {
	d := NewDispatcher()
	h := Typed(func(ctx context.Context, req AgentRequest) (any, error) { return nil, nil })
	for _, k := range []Kind{KindWorldTick, KindAgentAction, KindGossip} {
		if err := d.Register(k, h); err != nil {
			t.Fatalf("Register %s: %v", k, err)
		}
	}
	got := d.Kinds()
	want := []Kind{KindAgentAction, KindGossip, KindWorldTick}
	if len(got) != len(want) {
		t.Fatalf("kinds = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
