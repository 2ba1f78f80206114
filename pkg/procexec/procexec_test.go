package procexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawner_RunCapturesStdoutLinesInOrder(t *testing.T) {
	s := New()
	var got []string
	res := s.Run(context.Background(), "", nil, func(l Line) {
		if l.Stream == Stdout {
			got = append(got, l.Text)
		}
	}, "sh", "-c", "echo one; echo two; echo three")

	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestSpawner_RunReportsNonZeroExitCode(t *testing.T) {
	s := New()
	res := s.Run(context.Background(), "", nil, func(Line) {}, "sh", "-c", "exit 7")

	require.NoError(t, res.Err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestSpawner_RunHonorsContextCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := s.Run(ctx, "", nil, func(Line) {}, "sh", "-c", "sleep 5")

	assert.Error(t, res.Err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestSpawner_RunCapturesStderr(t *testing.T) {
	s := New()
	var sawStderr bool
	res := s.Run(context.Background(), "", nil, func(l Line) {
		if l.Stream == Stderr && l.Text == "oops" {
			sawStderr = true
		}
	}, "sh", "-c", "echo oops 1>&2")

	require.NoError(t, res.Err)
	assert.True(t, sawStderr)
}
