// Package events provides types and interfaces for task lifecycle notifications.
//
// This package defines event types and handler interfaces that allow for loose coupling
// between the scheduler and the components observing it. The scheduler emits events
// without knowing which handlers will process them; log sinks, metric counters or
// other subsystems register handlers on an emitter.
//
// The primary components are:
// - Event: Represents one task lifecycle transition
// - Handler: Interface for components that can handle events
// - Emitter: Interface for components that can emit events
package events
