// Package tabsync propagates auth state changes between client instances of
// the same user without any server round trip.
//
// Two transports implement the one [Bus] interface:
//
//   - [MemoryHub]/[MemoryBus] — in-process delivery, the primary transport.
//   - [FileBus] — fsnotify-based delivery through the shared state
//     directory, best-effort redundancy for instances in separate processes.
//
// A bus never delivers a message back to its sender.
package tabsync
