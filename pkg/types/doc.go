// Package types defines the journey canvas data model, the collaborator
// interfaces the preview core talks to (canvas, event bus, layout engine),
// configuration, and the standard errors shared by every package.
//
// Nodes, edges, and preview lines are plain structs. State changes that
// carry invariants go through methods: a node's configured flag is
// monotonic, and a preview line moves between free, dragging, and
// connected only along legal transitions.
package types
