// Package coordinator owns the configured commands, one repeating timer per
// enabled command, the latest-result cache and the observer registry.
//
// Lifecycle:
//   - New loads the command list from the settings store and follows its changes
//   - StartAll / StopAll / RestartAll manage timers
//   - RefreshAll runs every enabled command once and waits for all of them
//   - Destroy tears everything down; it is safe to call more than once
//
// Runs for one command never overlap: a tick that finds a run outstanding for
// its id is skipped. Every result update and every reload is followed by
// exactly one serialized notification pass over the observers.
package coordinator
