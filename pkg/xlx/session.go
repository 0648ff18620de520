// Package xlx interprets ordinary user-to-user DMR frames on an XLX
// reflector's primary talk-group as link-control commands, and tracks
// which reflector number is currently linked.
package xlx

import "fmt"

// Unlinked is the reflector number that means "no reflector linked".
const Unlinked = 4000

// ReflectorSlot and ReflectorTG are the timeslot and talk-group every
// XLX reflector expects traffic on, fixed by the XLX protocol itself
// regardless of a session's configured primary slot/TG.
const (
	ReflectorSlot = 2
	ReflectorTG   = 9
)

// maxOffset is the highest valid offset from Base; XLX reflectors are
// numbered 4000-4026 inclusive, a 27-entry range.
const maxOffset = 26

// Session tracks one XLX network's link state: its primary slot/TG
// (the group address that frames must target to be treated as XLX
// traffic at all) and the base ID that private-call destinations in
// [Base, Base+26] map onto reflectors [4000, 4026].
type Session struct {
	Name        string
	PrimarySlot int
	PrimaryTG   uint32
	Base        uint32

	reflector uint32
	changed   bool
}

// NewSession creates a session with no reflector linked.
func NewSession(name string, primarySlot int, primaryTG, base uint32) *Session {
	return &Session{Name: name, PrimarySlot: primarySlot, PrimaryTG: primaryTG, Base: base, reflector: Unlinked}
}

// Reflector reports the currently linked reflector number, or Unlinked.
func (s *Session) Reflector() uint32 {
	return s.reflector
}

// MatchesPrimary reports whether a group-call frame on the given slot
// and TG is this session's bridged voice/data traffic, as opposed to a
// link-control command.
func (s *Session) MatchesPrimary(slot int, dstID uint32, isGroup bool) bool {
	return isGroup && slot == s.PrimarySlot && dstID == s.PrimaryTG
}

// MatchesLinkControl reports whether a user-to-user frame's destination
// falls in this session's base offset range, i.e. is a link-control
// command rather than ordinary traffic.
func (s *Session) MatchesLinkControl(slot int, dstID uint32, isGroup bool) bool {
	if isGroup || slot != s.PrimarySlot {
		return false
	}
	return dstID >= s.Base && dstID <= s.Base+maxOffset
}

// Interpret decodes a link-control destination ID into the reflector
// number it names (4000-4026). When that differs from compareAgainst's
// reflector, it becomes this session's reflector at once and the
// pending-change flag is set. The flag
// latches across every frame of one transmission; CommitIfChanged,
// called on the frame carrying DT_TERMINATOR_WITH_LC, reports and
// clears it, so the change is only acted on at the terminator.
//
// compareAgainst is the session the "did it change" check compares
// the new reflector number against. Passing the other XLX session here
// instead of this one reproduces a long-standing cross-wiring quirk —
// XLX-2's link changes get evaluated against XLX-1's reflector rather
// than its own — that is almost certainly a mistake rather than
// intended shared state, but real deployments have run with it for
// years, so it is preserved as the default (FixXLX2ReflectorComparison
// in the dispatcher's config) and only bypassed when compareAgainst is
// this session itself.
func (s *Session) Interpret(dstID uint32, compareAgainst *Session) uint32 {
	reflector := Unlinked + (dstID - s.Base)

	if compareAgainst == nil {
		compareAgainst = s
	}
	if reflector != compareAgainst.reflector {
		s.reflector = reflector
		s.changed = true
	}
	return reflector
}

// Changed reports whether a link change is pending confirmation (i.e.
// has not yet been committed via CommitIfChanged).
func (s *Session) Changed() bool {
	return s.changed
}

// CommitIfChanged clears the pending-change flag and reports whether
// there was one to clear. Call this when a DT_TERMINATOR_WITH_LC frame
// closes out the transmission that carried the link command — this is
// the point at which a voice confirmation announcement should be
// queued.
func (s *Session) CommitIfChanged() bool {
	if !s.changed {
		return false
	}
	s.changed = false
	return true
}

// IsUnlinked reports whether the currently linked reflector is the
// sentinel "no reflector" value.
func (s *Session) IsUnlinked() bool {
	return s.reflector == Unlinked
}

func (s *Session) String() string {
	if s.IsUnlinked() {
		return fmt.Sprintf("%s: unlinked", s.Name)
	}
	return fmt.Sprintf("%s: linked to XLX%03d", s.Name, s.reflector-4000)
}
