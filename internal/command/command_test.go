package command

import (
	"testing"

	"github.com/udisondev/l2latency/internal/config"
)

func TestToggleEnabledWithNoArgs(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	cfg.Enabled = true

	if _, err := r.Dispatch(&cfg, ""); err != nil {
		t.Fatal(err)
	}
	if cfg.Enabled {
		t.Fatal("expected enabled toggled off")
	}
}

func TestOnOff(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()

	if _, err := r.Dispatch(&cfg, "off"); err != nil {
		t.Fatal(err)
	}
	if cfg.Enabled {
		t.Fatal("expected disabled")
	}
	if _, err := r.Dispatch(&cfg, "on"); err != nil {
		t.Fatal(err)
	}
	if !cfg.Enabled {
		t.Fatal("expected enabled")
	}
}

func TestDelayRejectsNonNumericAndNegative(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()

	if _, err := r.Dispatch(&cfg, "delay abc"); err == nil {
		t.Fatal("expected error for non-numeric delay")
	}
	if _, err := r.Dispatch(&cfg, "delay -1"); err == nil {
		t.Fatal("expected error for negative delay")
	}
	if _, err := r.Dispatch(&cfg, "delay 120"); err != nil {
		t.Fatal(err)
	}
	if cfg.DelayMs != 120 {
		t.Fatalf("got %d", cfg.DelayMs)
	}
}

func TestDashDefaultsAndSets(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	if cfg.DashMs != 25 {
		t.Fatalf("expected default dash 25, got %d", cfg.DashMs)
	}
	if _, err := r.Dispatch(&cfg, "dash 40"); err != nil {
		t.Fatal(err)
	}
	if cfg.DashMs != 40 {
		t.Fatalf("got %d", cfg.DashMs)
	}
	if _, err := r.Dispatch(&cfg, "dash nope"); err == nil {
		t.Fatal("expected error for non-numeric dash")
	}
}

func TestPingToggleAndInterval(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()

	if _, err := r.Dispatch(&cfg, "ping"); err != nil {
		t.Fatal(err)
	}
	if !cfg.PingDisplay {
		t.Fatal("expected ping display on")
	}

	if _, err := r.Dispatch(&cfg, "ping 30"); err != nil {
		t.Fatal(err)
	}
	if cfg.PingIntervalSec != 30 {
		t.Fatalf("got %d", cfg.PingIntervalSec)
	}

	if _, err := r.Dispatch(&cfg, "ping 0"); err == nil {
		t.Fatal("expected error for out-of-range interval")
	}
	if _, err := r.Dispatch(&cfg, "ping 901"); err == nil {
		t.Fatal("expected error for out-of-range interval")
	}
}

func TestUnknownCommand(t *testing.T) {
	r := NewRegistry()
	cfg := config.Default()
	if _, err := r.Dispatch(&cfg, "bogus"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
