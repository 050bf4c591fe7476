/*
Package session manages live backlog instances.

Each session is an independently running arbor.Backlog addressed by a random id. The
Manager is what the HTTP, MCP and REPL surfaces share: they create a session, send it
view events and read its snapshots, and close it when the view goes away. Closing a
session stops its interpreter, which cancels any in-flight backend calls.
*/
package session
