/*
Package ports defines the driven ports (interfaces) of the backlog coordinator.

These interfaces decouple the statechart logic from the systems that actually hold
tickets, so the same machine runs against an in-process store, Redis or a remote HTTP API.

# Key Interfaces

  - TicketBackend: the asynchronous collaborator behind the list, details and title update
    resources.
  - DistributedLocker: cross-replica mutual exclusion, used by backends whose updates are
    read-modify-write.

Every TicketBackend implementation should pass RunTicketBackendContract.
*/
package ports
