// Package session keeps an audit trail of armband connections in SQLite.
//
// Every connect opens an armband_sessions row and every disconnect closes
// it. Command outcomes are counted against the open session. Recorder
// adapts the repository to the hub's recorder hook; CloseStale tidies up
// rows left open by a previous run that exited without shutting down.
package session
