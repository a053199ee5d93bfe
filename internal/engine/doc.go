// Package engine is the timeline engine. It owns the playback clock, the clip
// registry, the frame script bindings and the session's global store, and
// turns each frame-entry event into one published FrameSnapshot.
//
// Transport commands are queued and applied at the start of the next
// Advance, so a command never interrupts a frame evaluation in progress.
// Edits are applied between ticks under the engine lock.
package engine
