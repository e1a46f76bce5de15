package effect

import (
	"errors"
	"testing"

	"github.com/joeycumines/testable/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCmds_OrderAndClassification(t *testing.T) {
	tk := task.Succeed{Value: "done"}
	tree := Batch(
		Port("A", "a"),
		Batch(Perform(tk), Port("C", "c")),
		Port("D", "d"),
	)

	cmds, err := ExtractCmds(tree)
	require.NoError(t, err)
	assert.Equal(t, []Command{
		PortCommand{Port: "A", Value: "a"},
		TaskCommand{Task: tk},
		PortCommand{Port: "C", Value: "c"},
		PortCommand{Port: "D", Value: "d"},
	}, cmds)

	again, err := ExtractCmds(tree)
	require.NoError(t, err)
	assert.Equal(t, cmds, again)
}

func TestExtractCmds_TaskHomeWithoutPerform(t *testing.T) {
	// only the Perform payload marks a task command
	cmds, err := ExtractCmds(Batch(
		Leaf{Home: TaskHome, Value: "not a perform"},
		Leaf{Home: "Other", Value: task.Perform{Task: task.Succeed{}}},
		Leaf{Home: TaskHome, Value: &task.Perform{Task: task.Fail{Err: 1}}},
	))
	require.NoError(t, err)
	assert.Equal(t, []Command{
		PortCommand{Port: TaskHome, Value: "not a perform"},
		PortCommand{Port: "Other", Value: task.Perform{Task: task.Succeed{}}},
		TaskCommand{Task: task.Fail{Err: 1}},
	}, cmds)
	assert.Equal(t, TaskHome, cmds[2].Channel())
	assert.Equal(t, "Other", cmds[1].Channel())
}

func TestExtractCmds_Malformed(t *testing.T) {
	cmds, err := ExtractCmds(Batch(Port("a", nil), mapTree{}))
	assert.ErrorIs(t, err, ErrMalformedTree)
	assert.Nil(t, cmds)
}

func TestExtractSubs(t *testing.T) {
	tagger := func(v any) any { return v }
	subs, err := ExtractSubs(Batch(
		Subscribe("incoming", tagger),
		Batch(Subscribe("clicks", tagger)),
	))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "incoming", subs[0].Port)
	assert.Equal(t, "clicks", subs[1].Port)

	fn, ok := subs[0].Tagger()
	require.True(t, ok)
	assert.Equal(t, 5, fn(5))

	_, ok = Subscription{Port: "x", Value: 3}.Tagger()
	assert.False(t, ok)
}

func TestExtractSubPortName(t *testing.T) {
	name, err := ExtractSubPortName(func(tagger Tagger) (Tree, error) {
		return Subscribe("incoming", tagger), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "incoming", name)

	t.Run("identity mapper", func(t *testing.T) {
		var got any
		_, err := ExtractSubPortName(func(tagger Tagger) (Tree, error) {
			got = tagger("payload")
			return Subscribe("p", tagger), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "payload", got)
	})

	t.Run("zero leaves", func(t *testing.T) {
		_, err := ExtractSubPortName(func(Tagger) (Tree, error) { return None(), nil })
		assert.ErrorIs(t, err, ErrNotSingleLeaf)
	})

	t.Run("two leaves", func(t *testing.T) {
		_, err := ExtractSubPortName(func(tagger Tagger) (Tree, error) {
			return Batch(Subscribe("a", tagger), Subscribe("b", tagger)), nil
		})
		assert.ErrorIs(t, err, ErrNotSingleLeaf)
	})

	t.Run("constructor error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := ExtractSubPortName(func(Tagger) (Tree, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	})
}
