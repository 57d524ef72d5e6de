package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/meta-ai-router/internal/classify"
)

func msg(i int) Message {
	return Message{
		UserPrompt:   fmt.Sprintf("q%d", i),
		AIResponse:   fmt.Sprintf("a%d", i),
		Category:     classify.CategoryGeneral,
		ProviderID:   "p",
		ProviderName: "P",
	}
}

func TestSession_UndoRedoRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("history-%d", n), func(t *testing.T) {
			s := NewSession("s")
			for i := 0; i < n; i++ {
				s.Append(msg(i))
			}
			before := s.History()

			undone, err := s.Undo()
			require.NoError(t, err)
			assert.Equal(t, before[n-1], undone)
			assert.Len(t, s.History(), n-1)

			redone, err := s.Redo()
			require.NoError(t, err)
			assert.Equal(t, undone, redone)
			assert.Equal(t, before, s.History())
		})
	}
}

func TestSession_MultipleUndosRedoInReverse(t *testing.T) {
	s := NewSession("s")
	for i := 0; i < 3; i++ {
		s.Append(msg(i))
	}

	_, _ = s.Undo()
	_, _ = s.Undo()
	assert.Equal(t, []Message{msg(0)}, s.History())

	m, err := s.Redo()
	require.NoError(t, err)
	assert.Equal(t, msg(1), m)
	m, err = s.Redo()
	require.NoError(t, err)
	assert.Equal(t, msg(2), m)

	_, err = s.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestSession_AppendAfterUndoDropsRedo(t *testing.T) {
	s := NewSession("s")
	s.Append(msg(0))
	s.Append(msg(1))

	_, err := s.Undo()
	require.NoError(t, err)
	s.Append(msg(9))

	_, err = s.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)
	assert.Equal(t, []Message{msg(0), msg(9)}, s.History())
}

func TestSession_EmptyPreconditions(t *testing.T) {
	s := NewSession("s")

	_, err := s.Undo()
	assert.ErrorIs(t, err, ErrEmptyHistory)
	_, err = s.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)

	for _, p := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, s.Enqueue(p), ErrEmptyPrompt)
	}
	assert.Empty(t, s.Pending())
}

func TestSession_Clear(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := NewSession("s")
		s.Clear()
		snap := s.Snapshot()
		assert.Empty(t, snap.History)
		assert.Empty(t, snap.Undone)
		assert.Empty(t, snap.Pending)
	})

	t.Run("populated", func(t *testing.T) {
		s := NewSession("s")
		s.Append(msg(0))
		s.Append(msg(1))
		_, _ = s.Undo()
		require.NoError(t, s.Enqueue("later"))

		s.Clear()
		snap := s.Snapshot()
		assert.Empty(t, snap.History)
		assert.Empty(t, snap.Undone)
		assert.Empty(t, snap.Pending)

		_, err := s.Redo()
		assert.ErrorIs(t, err, ErrNothingToRedo)
	})
}

func TestSession_Queue(t *testing.T) {
	s := NewSession("s")

	require.NoError(t, s.Enqueue("x"))
	assert.Equal(t, []string{"x"}, s.DrainQueue())
	assert.Empty(t, s.Pending())
	assert.Equal(t, []string{}, s.DrainQueue())

	require.NoError(t, s.Enqueue("  first "))
	require.NoError(t, s.Enqueue("second"))
	p, ok := s.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, "first", p)
	assert.Equal(t, []string{"second"}, s.Pending())

	_, _ = s.Dequeue()
	_, ok = s.Dequeue()
	assert.False(t, ok)
}

func TestSession_StatsCounters(t *testing.T) {
	s := NewSession("s")
	s.Append(msg(0))
	m := msg(1)
	m.Category = classify.CategoryMath
	s.Append(m)
	_, _ = s.Undo()
	_, _ = s.Redo()
	_, _ = s.Undo()
	require.NoError(t, s.Enqueue("q"))

	st := s.Stats()
	assert.Equal(t, 1, st.Messages)
	assert.Equal(t, st.Messages, st.Undo, "every committed exchange is undoable")
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.Redo)
	assert.Equal(t, 2, st.Processed)
	assert.Equal(t, 2, st.Undos)
	assert.Equal(t, 1, st.Redos)
	assert.Equal(t, 1, st.Categories[classify.CategoryMath])

	s.Clear()
	st = s.Stats()
	assert.Zero(t, st.Messages)
	assert.Equal(t, 2, st.Processed, "counters survive clear")
	assert.Equal(t, 2, st.Undos)
}

func TestSession_SnapshotRestore(t *testing.T) {
	s := NewSession("s")
	s.Append(msg(0))
	s.Append(msg(1))
	_, _ = s.Undo()
	require.NoError(t, s.Enqueue("later"))

	snap := s.Snapshot()
	r := NewSession("s")
	r.Restore(snap)

	assert.Equal(t, s.History(), r.History())
	assert.Equal(t, s.Pending(), r.Pending())
	m, err := r.Redo()
	require.NoError(t, err)
	assert.Equal(t, msg(1), m)
}

func TestSession_HistoryIsACopy(t *testing.T) {
	s := NewSession("s")
	s.Append(msg(0))

	h := s.History()
	h[0].AIResponse = "changed"
	assert.Equal(t, "a0", s.History()[0].AIResponse)
}

func TestSession_ConcurrentUndoIsSerialized(t *testing.T) {
	s := NewSession("s")
	for i := 0; i < 50; i++ {
		s.Append(msg(i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[string]bool{}
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.Undo()
			if err != nil {
				return
			}
			mu.Lock()
			seen[m.UserPrompt] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.Empty(t, s.History())
	assert.Equal(t, 50, s.Stats().Redo)
}
