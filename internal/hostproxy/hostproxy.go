// Package hostproxy declares the contract the core consumes from its
// embedding proxy: a hook registry subscribing to named packets by
// (name, version, order, direction) and returning either a pass,
// a drop, or a rewritten payload.
//
// No concrete wire codec or packet registry lives here — that is the
// host's job and stays out of scope. The shape is grounded on two
// idioms from the example pack: the teacher's clientpackets/
// serverpackets typed-struct-with-Write pattern (a packet is a typed
// value, not a raw byte blob, once decoded) and the gate proxy's
// proto.PacketContext (opaque Payload plus a decoded view) for the
// hook-argument shape itself, since gate's handlePacket switch
// dispatches on a typed packet exactly the way a hook here dispatches
// on ctx.Name.
package hostproxy

// Direction tags which side of the connection a packet travels.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// HookResult is a hook's verdict on an observed packet: pass it
// through unchanged (the zero value), drop it, or rewrite it.
type HookResult struct {
	Drop    bool
	Rewrite []byte
}

// Pass is the zero-value "do nothing" result, named for readability
// at call sites.
var Pass = HookResult{}

// PacketContext is the view a hook receives. Raw is the opaque
// encoded payload; Name identifies the packet by the semantic role
// names in spec.md §6 (e.g. "ActionStage", "StartCooltimeSkill").
// Decoded fields the core needs are populated by the host before the
// hook runs — this package does not know how to parse Raw itself.
type PacketContext struct {
	Name      string
	Version   int
	Direction Direction
	Raw       []byte
	Fields    map[string]any
}

// Hook observes or rewrites one packet.
type Hook func(ctx *PacketContext) HookResult

// Registry is the host's subscription surface. Order controls
// execution order among hooks registered for the same (name, version,
// direction); lower runs first.
type Registry interface {
	Subscribe(name string, version int, order int, dir Direction, hook Hook)
}

// Sender is the host's outbound-injection surface: emit a synthesized
// packet to the client (fake stage/end/move/dash/projectile) without
// it ever having been observed inbound.
type Sender interface {
	SendToClient(name string, fields map[string]any) error
}
