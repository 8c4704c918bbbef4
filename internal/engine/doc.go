// Package engine implements the LOOM incremental reconciliation engine.
//
// The engine builds descriptor trees from component functions, diffs them
// against the previously committed work-node tree, and applies the resulting
// mutation script to an external target surface.
//
// ARCHITECTURE:
//
// Single-Worker Cooperative Loop:
// All tree mutation happens on a single logical worker. Render work is split
// into bounded units (one work node's build-and-diff step per unit) so the
// loop can be paused, restarted at a higher priority, or abandoned between
// units without corrupting the committed tree. This ensures:
//   - The committed tree is never observed in a half-diffed state
//   - A discarded in-flight pass leaves no trace (alternates are dropped
//     wholesale, effects only fire for committed trees)
//   - Deterministic mutation scripts for replay and golden comparison
//
// Render Pass Flow:
//  1. Triggers (mounts and state writes) enqueued to a lane-bucketed queue
//  2. The work loop picks the most urgent dirty root and builds its
//     alternate tree one unit at a time, checking for preemption between
//     units
//  3. When the whole alternate tree is built, the mutation script is
//     computed and applied to the surface synchronously (non-interruptible)
//  4. The alternate becomes current, due effect cleanups and bodies flush
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Work nodes and mutations are stamped with a monotonic seq counter from
// Clock.Next(). Never use wall-clock timestamps for ordering.
//
// Slot Identity By Call Order:
// A component's state slots are matched by hook call order, validated on
// every build. A changed slot count or kind sequence is an unrecoverable
// StateConsistencyError for the pass.
//
// Queued Writes Only:
// Setters never mutate live state. Writes queue on the owning slot and are
// observed through the next committed pass, which is what makes abandoning
// an in-flight pass safe.
package engine
