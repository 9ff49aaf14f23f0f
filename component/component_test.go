package component

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

type describedComponent struct {
	mockComponent
}

func (d *describedComponent) Describe() Description {
	return Description{Type: "store", Details: "tables=0"}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&mockComponent{name: "store"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register(&mockComponent{name: "store"})
	if err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry(nil)
	c := &mockComponent{name: "relay"}
	_ = r.Register(c)

	if got := r.Get("relay"); got != c {
		t.Errorf("expected registered component, got %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Errorf("expected nil for unknown component, got %v", got)
	}
	if len(r.All()) != 1 {
		t.Errorf("expected 1 component, got %d", len(r.All()))
	}
}

func TestStartStopOrder(t *testing.T) {
	var started, stopped []string
	r := NewRegistry(nil)
	for _, name := range []string{"store", "relay", "server"} {
		_ = r.Register(&mockComponent{name: name, startOrder: &started, stopOrder: &stopped})
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if strings.Join(started, ",") != "store,relay,server" {
		t.Errorf("unexpected start order %v", started)
	}

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if strings.Join(stopped, ",") != "server,relay,store" {
		t.Errorf("unexpected stop order %v", stopped)
	}
}

func TestStartAllRollsBack(t *testing.T) {
	var started, stopped []string
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "store", startOrder: &started, stopOrder: &stopped})
	_ = r.Register(&mockComponent{name: "relay", startOrder: &started, stopOrder: &stopped})
	_ = r.Register(&mockComponent{name: "server", startErr: errors.New("bind: address in use"), startOrder: &started, stopOrder: &stopped})

	err := r.StartAll(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if !strings.Contains(err.Error(), "failed to start server") {
		t.Errorf("unexpected error: %v", err)
	}
	if strings.Join(stopped, ",") != "relay,store" {
		t.Errorf("expected started components stopped in reverse, got %v", stopped)
	}

	stopped = nil
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if len(stopped) != 0 {
		t.Errorf("expected nothing left to stop, got %v", stopped)
	}
}

func TestStartAllSkipsStarted(t *testing.T) {
	var started []string
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "store", startOrder: &started})
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	_ = r.Register(&mockComponent{name: "server", startOrder: &started})
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if strings.Join(started, ",") != "store,server" {
		t.Errorf("expected each component started once, got %v", started)
	}
}

func TestStopAllWithErrors(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "a", stopErr: errors.New("boom")})
	_ = r.Register(&mockComponent{name: "b"})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected stop error")
	}
	if !strings.Contains(err.Error(), "failed to stop a") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStartAllDescribable(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&describedComponent{mockComponent{name: "store"}})
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
}

func TestHealthAll(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "a", health: Health{Name: "a", Status: StatusHealthy}})
	_ = r.Register(&mockComponent{name: "b", health: Health{Name: "b", Status: StatusDegraded}})

	hs := r.HealthAll(context.Background())
	if len(hs) != 2 {
		t.Fatalf("expected 2 health entries, got %d", len(hs))
	}
	if hs[1].Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", hs[1].Status)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name string
		in   []HealthStatus
		want HealthStatus
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []HealthStatus{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []HealthStatus{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []HealthStatus{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := make([]Health, 0, len(tt.in))
			for _, s := range tt.in {
				hs = append(hs, Health{Status: s})
			}
			if got := Overall(hs); got != tt.want {
				t.Errorf("Overall = %s, want %s", got, tt.want)
			}
		})
	}
}
