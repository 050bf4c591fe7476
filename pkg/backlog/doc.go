/*
Package backlog defines the ticket backlog coordinator: a statechart that keeps a ticket
list, the details of the selected ticket and a title update in flight, each backed by a
ports.TicketBackend call.

The view layer never inspects states. It sends the events of this package and renders
from the tags and the context of snapshots:

	listLoading, listReady, listError         the ticket list
	detailsLoading, detailsReady, detailsError the details sidebar
	sidebarClosed                              no details shown
	titleUpdating, updateError                 the title update

The chart is made of two parallel regions. "core" owns the loaders: each one invokes the
backend and announces its outcome with an internal event. "view" owns the tags and reacts
to those internal events. Internal events are unexported and cannot be sent from outside.
*/
package backlog
