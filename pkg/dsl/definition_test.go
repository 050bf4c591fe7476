package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N     int
	Items []string
}

func (c counter) Clone() counter {
	c.Items = append([]string(nil), c.Items...)
	return c
}

func TestBuilder_Tree(t *testing.T) {
	// 1. Build the chart using the DSL
	b := dsl.New[counter]("app").Context(counter{N: 1})
	root := b.Root().Parallel()

	list := root.State("list").Initial("idle")
	list.State("idle").Tags("listIdle").On("LOAD", dsl.To[counter]("loading"))
	list.State("loading").Tags("listLoading").On("CANCEL", dsl.To[counter]("#listIdle"))
	list.State("idle").ID("listIdle")

	details := root.State("details").Initial("closed")
	details.State("closed").On("OPEN", dsl.To[counter](".")).On("NOOP", dsl.Stay[counter]())
	details.State("open")

	_, err := b.Build()
	require.Error(t, err, "'.' is not a valid descendant")

	// 2. Fix the broken target and rebuild
	b2 := dsl.New[counter]("app").Context(counter{N: 1})
	r2 := b2.Root().Parallel()
	l2 := r2.State("list").Initial("idle")
	l2.State("idle").ID("listIdle").Tags("listIdle").On("LOAD", dsl.To[counter]("loading"))
	l2.State("loading").Tags("listLoading").On("CANCEL", dsl.To[counter]("#listIdle"))
	d2 := r2.State("details").Initial("closed")
	d2.State("closed").On("OPEN", dsl.To[counter]("open"))
	d2.State("open").Initial("view")
	d2.State("open").State("view")

	def, err := b2.Build()
	require.NoError(t, err)

	// 3. Verify the resolved tree
	assert.Equal(t, "app", def.ID())
	assert.Equal(t, domain.KindParallel, def.Root().Kind)

	paths := make([]string, 0)
	for _, n := range def.Nodes() {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"", "list", "list.idle", "list.loading", "details", "details.closed", "details.open", "details.open.view"}, paths)

	idle, ok := def.Lookup("listIdle")
	require.True(t, ok)
	assert.Equal(t, "list.idle", idle.Path)
	assert.Equal(t, domain.KindAtomic, idle.Kind)
	assert.Equal(t, 2, idle.Depth)

	byPath, ok := def.Lookup("list.idle")
	require.True(t, ok)
	assert.Same(t, idle, byPath)

	loading, _ := def.Lookup("list.loading")
	cancel := loading.Transitions("CANCEL")
	require.Len(t, cancel, 1)
	assert.Same(t, idle, cancel[0].TargetNode())
	assert.Same(t, loading, cancel[0].Source())

	open, _ := def.Lookup("details.open")
	assert.Equal(t, domain.KindCompound, open.Kind)
	assert.Equal(t, "view", open.Initial.Key)

	listNode, _ := def.Lookup("list")
	assert.True(t, listNode.IsAncestorOf(idle))
	assert.False(t, idle.IsAncestorOf(listNode))
	assert.False(t, listNode.IsAncestorOf(listNode))

	assert.Equal(t, []domain.EventType{"CANCEL", "LOAD", "OPEN"}, def.Events())
}

func TestBuilder_TargetSyntax(t *testing.T) {
	b := dsl.New[counter]("m")
	root := b.Root().Initial("a")
	a := root.State("a").Initial("x")
	a.State("x").On("TO_SIBLING", dsl.To[counter]("y"))
	a.State("y")
	a.On("TO_CHILD", dsl.To[counter](".y"))
	a.On("STAY", dsl.Stay[counter]())
	a.On("SELF", dsl.To[counter]("a").Reenter())
	root.State("b").On("ABS", dsl.To[counter]("#a.x"))

	def, err := b.Build()
	require.NoError(t, err)

	nodeA, _ := def.Lookup("a")
	nodeX, _ := def.Lookup("a.x")
	nodeY, _ := def.Lookup("a.y")
	nodeB, _ := def.Lookup("b")

	assert.Same(t, nodeY, nodeX.Transitions("TO_SIBLING")[0].TargetNode())
	assert.Same(t, nodeY, nodeA.Transitions("TO_CHILD")[0].TargetNode())
	assert.True(t, nodeA.Transitions("STAY")[0].Targetless())
	self := nodeA.Transitions("SELF")[0]
	assert.Same(t, nodeA, self.TargetNode())
	assert.True(t, self.External)
	assert.Same(t, nodeX, nodeB.Transitions("ABS")[0].TargetNode())
}

func TestBuilder_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name   string
		build  func(b *dsl.Builder[counter])
		reason string
	}{
		{
			name: "compound without initial",
			build: func(b *dsl.Builder[counter]) {
				b.Root().State("a")
			},
			reason: "compound node has no initial child",
		},
		{
			name: "initial is not a child",
			build: func(b *dsl.Builder[counter]) {
				b.Root().Initial("missing").State("a")
			},
			reason: `initial child "missing" does not exist`,
		},
		{
			name: "parallel without regions",
			build: func(b *dsl.Builder[counter]) {
				b.Root().Parallel()
			},
			reason: "parallel node has no regions",
		},
		{
			name: "unresolved target",
			build: func(b *dsl.Builder[counter]) {
				b.Root().Initial("a").State("a").On("GO", dsl.To[counter]("nowhere"))
			},
			reason: `target "nowhere" does not resolve`,
		},
		{
			name: "unknown id",
			build: func(b *dsl.Builder[counter]) {
				b.Root().Initial("a").State("a").On("GO", dsl.To[counter]("#ghost"))
			},
			reason: `target "#ghost" does not match any id`,
		},
		{
			name: "duplicate id",
			build: func(b *dsl.Builder[counter]) {
				r := b.Root().Initial("a")
				r.State("a").ID("same")
				r.State("b").ID("same")
			},
			reason: `duplicate id "same"`,
		},
		{
			name: "invocation without operation",
			build: func(b *dsl.Builder[counter]) {
				b.Root().Initial("a").State("a").Invoke(dsl.Invocation[counter]{ActorID: "load"})
			},
			reason: `invocation "load" has no operation`,
		},
		{
			name: "invocation without actor id",
			build: func(b *dsl.Builder[counter]) {
				b.Root().Initial("a").State("a").Invoke(dsl.Invocation[counter]{})
			},
			reason: "invocation has no actor id",
		},
		{
			name: "dotted key",
			build: func(b *dsl.Builder[counter]) {
				b.Root().Initial("a.b").State("a.b")
			},
			reason: `invalid state key "a.b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New[counter]("m")
			tt.build(b)

			_, err := b.Build()
			var defErr *domain.DefinitionError
			require.ErrorAs(t, err, &defErr)
			assert.Equal(t, tt.reason, defErr.Reason)
		})
	}
}

func TestActions(t *testing.T) {
	inc := dsl.Assign(func(c *counter, _ domain.Event) { c.N++ })
	raise := dsl.Raise[counter](domain.Signal("NEXT"))
	compute := dsl.RaiseFunc("maybe", func(c counter, _ domain.Event) domain.Event {
		if c.N > 1 {
			return domain.Signal("BIG")
		}
		return nil
	})

	c := counter{N: 1}
	inc.Apply(&c, domain.Signal("X"))
	assert.Equal(t, 2, c.N)
	assert.Nil(t, inc.Event(c, nil))

	raise.Apply(&c, nil)
	assert.Equal(t, 2, c.N, "raise does not touch the store")
	assert.Equal(t, domain.EventType("NEXT"), raise.Event(c, nil).EventType())
	assert.Equal(t, "raise NEXT", raise.Name)

	assert.Equal(t, domain.Signal("BIG"), compute.Event(c, nil))
	assert.Nil(t, compute.Event(counter{}, nil))

	assert.Equal(t, "bump", inc.Named("bump").Name)
	assert.Equal(t, "assign", dsl.ActionAssign.String())
}

func TestInvocation_Bindings(t *testing.T) {
	b := dsl.New[counter]("m")
	b.Root().Initial("loading").State("loading").Invoke(dsl.Invocation[counter]{
		ActorID: "fetch",
		Start:   func(_ context.Context, _ counter, _ domain.Event) (any, error) { return nil, nil },
		OnDone:  []dsl.Transition[counter]{dsl.To[counter]("done")},
		OnError: []dsl.Transition[counter]{dsl.To[counter]("failed")},
	})
	b.Root().State("done")
	b.Root().State("failed")

	def, err := b.Build()
	require.NoError(t, err)

	loading, _ := def.Lookup("loading")
	require.NotNil(t, loading.Invocation)
	assert.Equal(t, "done", loading.Transitions("fetch.done")[0].TargetNode().Path)
	assert.Equal(t, "failed", loading.Transitions("fetch.error")[0].TargetNode().Path)
	assert.Contains(t, def.Describe(), "invoke fetch")
}

func TestDefinition_Clone(t *testing.T) {
	b := dsl.New[counter]("m").Context(counter{Items: []string{"a"}})
	b.Root().Initial("a").State("a")
	def, err := b.Build()
	require.NoError(t, err)

	c1 := def.NewContext()
	c1.Items[0] = "mutated"
	assert.Equal(t, "a", def.NewContext().Items[0], "Clone() method is used")

	custom := dsl.New[counter]("m").Context(counter{N: 5}).WithClone(func(c counter) counter {
		c.N *= 10
		return c
	})
	custom.Root().Initial("a").State("a")
	def2, err := custom.Build()
	require.NoError(t, err)
	assert.Equal(t, 50, def2.NewContext().N)
}

func TestDefinition_Describe(t *testing.T) {
	b := dsl.New[counter]("m")
	r := b.Root().Initial("idle")
	r.State("idle").Tags("idle").On("GO", dsl.To[counter]("busy").If(func(counter, domain.Event) bool { return true }))
	r.State("busy").ID("work")

	def, err := b.Build()
	require.NoError(t, err)

	want := "m (compound, initial: idle)\n" +
		"  idle (atomic) [idle]\n" +
		"    on GO -> busy [guarded]\n" +
		"  busy (atomic) #work\n"
	assert.Equal(t, want, def.Describe())
}
