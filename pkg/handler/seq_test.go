package handler

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/response"
)

func texts(n int) []Handler {
	hs := make([]Handler, n)
	for i := range hs {
		hs[i] = Text(strconv.Itoa(i))
	}
	return hs
}

func bodies(t *testing.T, h Handler, calls int) []string {
	t.Helper()
	out := make([]string, calls)
	for i := range out {
		out[i] = string(run(t, h, get("/")).Body)
	}
	return out
}

func TestSeq_SticksOnLast(t *testing.T) {
	h := Seq(texts(3)...)
	assert.Equal(t, []string{"0", "1", "2", "2", "2"}, bodies(t, h, 5))
}

func TestCycle_Wraps(t *testing.T) {
	h := Cycle(texts(3)...)
	assert.Equal(t, []string{"0", "1", "2", "0", "1", "2", "0"}, bodies(t, h, 7))
}

func TestSeq_Empty(t *testing.T) {
	resp := run(t, Seq(), get("/"))
	assert.Empty(t, resp.Body)
}

func TestSeq_ApplyResetsCursor(t *testing.T) {
	h := Seq(File("a.txt"), Text("b"))
	h.(*sequence).cursor.Add(1)

	applied := h.Apply(overlay.FileRoot("/srv"))
	require.NotSame(t, h, applied)
	assert.Equal(t, "/srv/a.txt", applied.(*sequence).handlers[0].(*fileHandler).Path())
	assert.Equal(t, uint64(0), applied.(*sequence).cursor.Load())
	assert.Same(t, h.(*sequence).handlers[1], applied.(*sequence).handlers[1])
	assert.Equal(t, uint64(1), h.(*sequence).cursor.Load())
}

func TestCycle_Concurrent(t *testing.T) {
	const (
		steps  = 4
		rounds = 50
	)
	h := Cycle(texts(steps)...)

	var (
		mu     sync.Mutex
		counts = make(map[string]int)
	)
	var g errgroup.Group
	for range steps * rounds {
		g.Go(func() error {
			resp := response.New()
			if err := h.Handle(context.Background(), get("/"), resp); err != nil {
				return err
			}
			mu.Lock()
			counts[string(resp.Body)]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := range steps {
		assert.Equal(t, rounds, counts[strconv.Itoa(i)], "step %d", i)
	}
}

func TestSeq_ConcurrentCallsSeeDistinctSteps(t *testing.T) {
	const n = 64
	h := Seq(texts(n)...)

	seen := make([]string, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			resp := response.New()
			if err := h.Handle(context.Background(), get("/"), resp); err != nil {
				return err
			}
			seen[i] = string(resp.Body)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.ElementsMatch(t, bodiesOf(texts(n)), seen)
	assert.Equal(t, strconv.Itoa(n-1), string(run(t, h, get("/")).Body))
}

func bodiesOf(hs []Handler) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h.(*textHandler).body)
	}
	return out
}
