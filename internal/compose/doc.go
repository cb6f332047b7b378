// Package compose attaches a generated quotation to the webmail reply the
// user is working on.
//
// The host webmail page is an external integration boundary. Finding its
// reply button and compose box relies on accessible names and roles that the
// page may change at any time, so the matching rules are versioned by
// HeuristicsVersion and kept separate from the draft creation itself.
package compose
