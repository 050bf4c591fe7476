package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

// journal is the context store used by the test charts: it records what ran.
type journal struct {
	Log  []string
	N    int
	Data any
	Err  error
}

func (j journal) Clone() journal {
	j.Log = append([]string(nil), j.Log...)
	return j
}

func note(entry string) dsl.Action[journal] {
	return dsl.Assign(func(j *journal, _ domain.Event) { j.Log = append(j.Log, entry) })
}

func to(target string, actions ...dsl.Action[journal]) dsl.Transition[journal] {
	return dsl.To(target, actions...)
}

func raise(t domain.EventType) dsl.Action[journal] {
	return dsl.Raise[journal](domain.Signal(t))
}

func build(t *testing.T, b *dsl.Builder[journal]) *dsl.Definition[journal] {
	t.Helper()
	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func start(t *testing.T, def *dsl.Definition[journal], opts ...runtime.Option) *runtime.Interpreter[journal] {
	t.Helper()
	opts = append([]runtime.Option{runtime.WithLogger(slogt.New(t))}, opts...)
	it := runtime.New(def, opts...)
	require.NoError(t, it.Start(context.Background()))
	t.Cleanup(it.Stop)
	return it
}
