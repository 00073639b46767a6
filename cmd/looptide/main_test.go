package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/looptide/looptide/config"
	"github.com/looptide/looptide/engine"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, query(&buf, "bd sn", "0", "1"))
	require.Equal(t, "[0, 1/2) [0, 1/2): bd\n[1/2, 1) [1/2, 1): sn\n", buf.String())

	buf.Reset()
	require.NoError(t, query(&buf, "<bd sn cp>", "2", "3"))
	require.Equal(t, "[2, 3) [2, 3): cp\n", buf.String())

	require.Error(t, query(&buf, "bd [", "0", "1"))
	require.Error(t, query(&buf, "bd", "x", "1"))
	require.Error(t, query(&buf, "bd", "1", "0"))
}

func TestListNodes(t *testing.T) {
	var buf bytes.Buffer
	listNodes(&buf)
	require.Contains(t, buf.String(), "adsr")
	require.Contains(t, buf.String(), "sampler")
}

func TestEditor(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yml")
	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(good, []byte("cps: 1\noutput: {node: 0}\nnodes:\n  - {type: osc}\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("cps: 1\noutput: {node: 4}\n"), 0644))

	cfg := config.Default()
	cfg.SampleRate = 1000
	e := engine.New(cfg, nil)
	var out bytes.Buffer
	in := strings.Join([]string{
		"load " + good,
		"",
		"load " + bad,
		"load",
		"stats",
		"hush",
		"bogus",
		"quit",
		"load " + good,
	}, "\n")
	err := newEditor(e, &out).run(context.Background(), strings.NewReader(in))
	require.True(t, errors.Is(err, errQuit))
	s := out.String()
	require.Contains(t, s, "generation 1: 1 nodes")
	require.Contains(t, s, "node 4 does not exist")
	require.Contains(t, s, "usage: load <file>")
	require.Contains(t, s, "generation 1, cycle 0")
	require.Contains(t, s, "hushed")
	require.Contains(t, s, `unknown command "bogus"`)
	require.Equal(t, uint64(2), e.Coordinator.Generation(), "nothing runs after quit")
}

func TestEditorEndOfInput(t *testing.T) {
	e := engine.New(config.Default(), nil)
	err := newEditor(e, &bytes.Buffer{}).run(context.Background(), strings.NewReader("stats\n"))
	require.ErrorIs(t, err, errQuit)
}
