package arbor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/backlog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// ExampleNewBacklog loads the list and opens a ticket. The manual executor makes the
// backend calls run exactly when the example says so.
func ExampleNewBacklog() {
	exec := arbor.NewManualExecutor()
	b, err := arbor.NewBacklog(memory.NewStore(), arbor.WithExecutor(exec))
	if err != nil {
		log.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer b.Stop()

	b.Send(backlog.LoadList{})
	fmt.Println(b.Snapshot().Tags.Sorted())

	exec.RunAll()
	snap := b.Snapshot()
	fmt.Println(snap.Tags.Sorted(), len(snap.Context.Tickets))

	b.Send(backlog.SelectTicket{ID: "id2"})
	exec.RunAll()
	fmt.Println(b.Snapshot().Context.SelectedTicket.Title)

	// Output:
	// [listLoading sidebarClosed]
	// [listReady sidebarClosed] 3
	// Ticket 2
}

// ExampleNew runs a small chart of its own.
func ExampleNew() {
	type Counter struct{ N int }

	b := dsl.New[Counter]("counter")
	root := b.Root().Initial("idle")
	root.State("idle").
		Tags("idle").
		On("START", dsl.To[Counter]("running"))
	root.State("running").
		Tags("busy").
		Entry(dsl.Assign(func(c *Counter, _ domain.Event) { c.N++ })).
		On("STOP", dsl.To[Counter]("idle"))

	def, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	svc := arbor.New(def)
	if err := svc.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer svc.Stop()

	svc.Send(domain.Signal("START"))
	svc.Send(domain.Signal("STOP"))
	svc.Send(domain.Signal("START"))

	snap := svc.Snapshot()
	fmt.Println(snap.Value, snap.Context.N, snap.HasTag("busy"))

	// Output:
	// [running] 2 true
}
