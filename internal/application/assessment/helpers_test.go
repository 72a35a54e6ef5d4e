package assessment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/reference"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/intelligence/oracle"
)

func testStore(t testing.TB) *reference.Store {
	t.Helper()
	s, err := reference.LoadEmbedded(reference.NewNormalizer(nil))
	require.NoError(t, err)
	return s
}

func testMatcher(t testing.TB) *registry.Matcher {
	t.Helper()
	snaps, err := registry.LoadAll(context.Background(), registry.EmbeddedFetcher, registry.AllKinds)
	require.NoError(t, err)
	return registry.NewMatcher(snaps)
}

// stubFiller answers every requested field it has a value for.
type stubFiller struct {
	mu     sync.Mutex
	values map[oracle.Field]float64
	err    error
	calls  [][]oracle.Field
}

func (f *stubFiller) Estimate(_ context.Context, fields []oracle.Field, _ oracle.Context) oracle.Estimate {
	f.mu.Lock()
	f.calls = append(f.calls, append([]oracle.Field(nil), fields...))
	f.mu.Unlock()
	if f.err != nil {
		return oracle.Estimate{Err: f.err}
	}
	est := oracle.Estimate{Values: make(map[oracle.Field]float64)}
	for _, fl := range fields {
		if v, ok := f.values[fl]; ok {
			est.Values[fl] = v
		}
	}
	return est
}

func (f *stubFiller) requested() []oracle.Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []oracle.Field
	for _, c := range f.calls {
		out = append(out, c...)
	}
	return out
}
