// Package rewrite implements the gateway's rewrite-rule algebra: five
// immutable, parameterised transformers over a protocol.Frame, tried in
// order so the first one that matches wins.
package rewrite

import "github.com/dl9xyz/dmrgateway/pkg/protocol"

// Rule is a single rewrite rule. Process reports whether the frame
// matched; on a match it has already mutated the frame in place.
// Implementations carry no mutable state beyond their construction
// parameters.
type Rule interface {
	Process(f *protocol.Frame) bool
	String() string
}

// Chain is an ordered sequence of rules tried in order; the first rule
// that claims the frame wins and the rest are not evaluated. Used by
// both directions of both DMR networks and nowhere else.
type Chain []Rule

// Process tries each rule in order, returning true as soon as one
// claims the frame.
func (c Chain) Process(f *protocol.Frame) bool {
	for _, r := range c {
		if r.Process(f) {
			return true
		}
	}
	return false
}

// inRange reports whether v falls in [base, base+rangeLen).
func inRange(v, base uint32, rangeLen uint32) bool {
	return v >= base && v < base+rangeLen
}
