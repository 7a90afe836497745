package modules

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/models"
	"github.com/stretchr/testify/require"
)

type testModule struct {
	name  string
	world *models.World
	ticks *[]string
	err   error
}

func (m *testModule) Name() string {
	return m.name
}

func (m *testModule) Init(w *models.World) {
	m.world = w
}

func (m *testModule) HandleTick(ctx context.Context) error {
	*m.ticks = append(*m.ticks, m.name)
	return m.err
}

func TestAttach(t *testing.T) {
	w := models.NewWorld(42, 1000, time.Second)
	defer w.Close()

	var ticks []string
	a := &testModule{name: "a", ticks: &ticks}
	b := &testModule{name: "b", ticks: &ticks, err: errors.New("tick failed")}
	c := &testModule{name: "c", ticks: &ticks}

	var out strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&out, e)
	})

	cancel := Attach(context.Background(), w, a, b, c)
	require.Equal(t, w, a.world)
	require.Equal(t, w, c.world)

	w.Step()
	require.Equal(t, []string{"a", "b", "c"}, ticks)
	require.Contains(t, out.String(), "tick failed")
	require.Contains(t, out.String(), `"module":"b"`)

	cancel()
	w.Step()
	require.Len(t, ticks, 3)
}

func TestMissingState(t *testing.T) {
	err := MissingState("navigation", "landmarks")
	require.Error(t, err)
	require.Equal(t, ErrTypeMissingState, errors.Type(err))
}

func TestNames(t *testing.T) {
	var ticks []string
	require.Equal(t, []string{"a", "b"}, Names(
		&testModule{name: "a", ticks: &ticks},
		&testModule{name: "b", ticks: &ticks},
	))
}
