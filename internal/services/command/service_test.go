package command_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"denim/internal/domain"
	"denim/internal/services/command"
	"denim/internal/store"
)

// script replays fixed answers to prompts.
type script []string

func (s *script) ReadLine(context.Context) (string, error) {
	if len(*s) == 0 {
		return "", io.EOF
	}
	l := (*s)[0]
	*s = (*s)[1:]
	return l, nil
}

func TestClassify(t *testing.T) {
	cases := map[string]command.Kind{
		":v":      command.View,
		" : e ":   command.Edit,
		":d\t":    command.Delete,
		":h":      command.Help,
		":q":      command.Quit,
		":x":      command.None,
		"hello":   command.None,
		":v more": command.None,
		"":        command.None,
	}
	for line, want := range cases {
		require.Equal(t, want, command.Classify(line), "line %q", line)
	}
	require.True(t, command.View.Local())
	require.False(t, command.Quit.Local())
	require.False(t, command.None.Local())
}

func seeded(t *testing.T) *store.MemoryHistory {
	t.Helper()
	h := store.NewMemoryHistory()
	for _, r := range []domain.HistoryRecord{
		{Person: domain.PersonYou, Text: "hi"},
		{Person: domain.PersonPeer, Text: "hello"},
	} {
		require.NoError(t, h.Append(context.Background(), r))
	}
	return h
}

func TestExecute_View(t *testing.T) {
	var out bytes.Buffer
	svc := command.New(seeded(t), &script{}, &out)
	require.NoError(t, svc.Execute(context.Background(), command.View))
	require.Contains(t, out.String(), "[1] YOU")
	require.Contains(t, out.String(), "[2] PEER")
	require.Contains(t, out.String(), ": hello\n")

	out.Reset()
	require.NoError(t, command.New(store.NewMemoryHistory(), &script{}, &out).Execute(context.Background(), command.View))
	require.Equal(t, "No messages yet.\n", out.String())
}

func TestExecute_EditAndDelete(t *testing.T) {
	h := seeded(t)
	var out bytes.Buffer
	in := &script{"2", "HELLO", " 1 "}
	svc := command.New(h, in, &out)

	require.NoError(t, svc.Execute(context.Background(), command.Edit))
	require.NoError(t, svc.Execute(context.Background(), command.Delete))

	recs, err := h.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, 1, recs[0].Index)
	require.Equal(t, "HELLO", recs[0].Text)
	require.Contains(t, out.String(), "Message 1 deleted.")
}

func TestExecute_OperatorMistakesAreReported(t *testing.T) {
	h := seeded(t)
	var out bytes.Buffer
	svc := command.New(h, &script{"abc", "9", "0"}, &out)

	require.NoError(t, svc.Execute(context.Background(), command.Delete))
	require.NoError(t, svc.Execute(context.Background(), command.Delete))
	require.NoError(t, svc.Execute(context.Background(), command.Delete))
	require.Contains(t, out.String(), "not a valid message index")
	require.Contains(t, out.String(), "not found")

	recs, _ := h.List(context.Background())
	require.Len(t, recs, 2)
}

func TestExecute_InputFailurePropagates(t *testing.T) {
	svc := command.New(seeded(t), &script{}, io.Discard)
	require.ErrorIs(t, svc.Execute(context.Background(), command.Edit), io.EOF)
	require.NoError(t, svc.Execute(context.Background(), command.Help))
	require.Error(t, svc.Execute(context.Background(), command.Quit))
}
