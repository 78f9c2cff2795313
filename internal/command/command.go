// Package command dispatches the `<ns> ...` text command surface
// (enable/disable, block, jaunt, delay, dash, ping) onto a
// configuration, returning a result message for the host to display.
//
// Grounded on internal/gameserver/admin/handler.go's Handler (a
// case-insensitive name→Command registry with one dispatch entry
// point); our namespace has no access-level concept and a single flat
// subcommand table, so RegisterAdmin/RegisterUser collapse into one
// Register, and the access-level check drops out entirely.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/udisondev/l2latency/internal/config"
)

// Result carries the user-facing text for a dispatched command.
type Result struct {
	Message string
}

// Handler executes one subcommand against cfg, mutating it in place
// and returning the feedback message to display.
type Handler func(cfg *config.Config, args []string) (Result, error)

// Registry is a case-insensitive subcommand name → Handler map.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a Registry pre-populated with the full
// enabled/on/off/block/jaunt/delay/dash/ping command set.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler, 8)}
	r.register("", handleToggleEnabled)
	r.register("on", handleOn)
	r.register("off", handleOff)
	r.register("block", handleToggleBlock)
	r.register("jaunt", handleToggleJaunt)
	r.register("delay", handleDelay)
	r.register("dash", handleDash)
	r.register("ping", handlePing)
	return r
}

func (r *Registry) register(name string, h Handler) {
	r.handlers[strings.ToLower(name)] = h
}

// Dispatch parses line (the text after the namespace token) and runs
// the matching handler. An unrecognized subcommand returns an error
// without mutating cfg.
func (r *Registry) Dispatch(cfg *config.Config, line string) (Result, error) {
	args := strings.Fields(line)
	name := ""
	if len(args) > 0 {
		name = strings.ToLower(args[0])
	}

	h, ok := r.handlers[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown command: %s", name)
	}
	return h(cfg, args)
}

func handleToggleEnabled(cfg *config.Config, _ []string) (Result, error) {
	cfg.Enabled = !cfg.Enabled
	return Result{Message: onOff("enabled", cfg.Enabled)}, nil
}

func handleOn(cfg *config.Config, _ []string) (Result, error) {
	cfg.Enabled = true
	return Result{Message: onOff("enabled", true)}, nil
}

func handleOff(cfg *config.Config, _ []string) (Result, error) {
	cfg.Enabled = false
	return Result{Message: onOff("enabled", false)}, nil
}

func handleToggleBlock(cfg *config.Config, _ []string) (Result, error) {
	cfg.Block = !cfg.Block
	return Result{Message: onOff("smooth block", cfg.Block)}, nil
}

func handleToggleJaunt(cfg *config.Config, _ []string) (Result, error) {
	cfg.Jaunt = !cfg.Jaunt
	return Result{Message: onOff("short-teleport emulation", cfg.Jaunt)}, nil
}

func handleDelay(cfg *config.Config, args []string) (Result, error) {
	n, err := parseNonNegativeInt(args)
	if err != nil {
		return Result{}, err
	}
	cfg.DelayMs = n
	return Result{Message: fmt.Sprintf("delay set to %dms", n)}, nil
}

func handleDash(cfg *config.Config, args []string) (Result, error) {
	n, err := parseNonNegativeInt(args)
	if err != nil {
		return Result{}, err
	}
	cfg.DashMs = n
	return Result{Message: fmt.Sprintf("dash emulation delay set to %dms", n)}, nil
}

func handlePing(cfg *config.Config, args []string) (Result, error) {
	if len(args) < 2 {
		cfg.PingDisplay = !cfg.PingDisplay
		return Result{Message: onOff("ping display", cfg.PingDisplay)}, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return Result{}, fmt.Errorf("ping interval must be numeric: %q", args[1])
	}
	if n < 1 || n > 900 {
		return Result{}, fmt.Errorf("ping interval must be in [1,900], got %d", n)
	}
	cfg.PingDisplay = true
	cfg.PingIntervalSec = n
	return Result{Message: fmt.Sprintf("ping display every %ds", n)}, nil
}

func parseNonNegativeInt(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("missing value")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected a non-negative integer, got %q", args[1])
	}
	return n, nil
}

func onOff(label string, v bool) string {
	if v {
		return label + " on"
	}
	return label + " off"
}
