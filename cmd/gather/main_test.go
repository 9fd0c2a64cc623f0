package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/gather/internal/episodelog"
)

func countImages(t *testing.T, dir string) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*_*.png"))
	require.NoError(t, err)
	return len(matches)
}

func TestCollect_RandomAgent(t *testing.T) {
	root := t.TempDir()
	var stderr bytes.Buffer
	err := run([]string{
		"--agent", "random",
		"--run", "t1",
		"--log_root", root,
		"--num_episodes", "1",
		"--max_steps", "5",
		"--image_width", "32",
		"--image_height", "24",
		"--seed", "3",
		"--log_level", "error",
	}, &bytes.Buffer{}, &stderr)
	require.NoError(t, err, stderr.String())

	dir := filepath.Join(root, "t1", "e0000")
	records, err := episodelog.ReadRecords(filepath.Join(dir, episodelog.LogFileName))
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.LessOrEqual(t, len(records), 5)
	for i, r := range records {
		assert.Equal(t, i, r.Step)
		assert.Len(t, r.Action, 7)
	}
	assert.Equal(t, 2*len(records), countImages(t, dir))
}

func TestCollect_GreedyAgent(t *testing.T) {
	root := t.TempDir()
	err := run([]string{
		"--agent", "greedy",
		"--run", "g1",
		"--log_root", root,
		"--num_episodes", "2",
		"--max_steps", "20",
		"--image_width", "16",
		"--image_height", "12",
		"--seed", "9",
		"--log_level", "error",
	}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	for _, ep := range []string{"e0000", "e0001"} {
		records, err := episodelog.ReadRecords(filepath.Join(root, "g1", ep, episodelog.LogFileName))
		require.NoError(t, err)
		require.NotEmpty(t, records)
		// one step goes to the unrecorded bootstrap
		assert.LessOrEqual(t, len(records), 19)
		for _, r := range records {
			nonZero := 0
			for _, v := range r.Action {
				if v != 0 {
					nonZero++
					assert.Contains(t, []float64{-1, 1}, v)
				}
			}
			assert.Equal(t, 1, nonZero)
		}
	}
}

func TestCollect_MissingRun(t *testing.T) {
	root := t.TempDir()
	err := run([]string{"--log_root", root}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run is required")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCollect_UnknownAgent(t *testing.T) {
	root := t.TempDir()
	err := run([]string{"--agent", "foo", "--run", "t1", "--log_root", root}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent type [foo]")

	_, statErr := os.Stat(filepath.Join(root, "t1"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCollect_EnvironmentVariables(t *testing.T) {
	root := t.TempDir()
	t.Setenv("GATHER_RUN", "from-env")
	t.Setenv("GATHER_NUM_EPISODES", "1")
	t.Setenv("GATHER_MAX_STEPS", "2")

	err := run([]string{"--log_root", root, "--image_width", "8", "--image_height", "8", "--log_level", "error"},
		&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	records, err := episodelog.ReadRecords(filepath.Join(root, "from-env", "e0000", episodelog.LogFileName))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(records), 2)
}

func TestCollect_ConfigFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "gather.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run: from-file\nnum_episodes: 1\nmax_steps: 3\nimage_format: jpg\n"), 0o644))

	err := run([]string{"--config", path, "--log_root", root, "--image_width", "8", "--image_height", "8", "--log_level", "error"},
		&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(root, "from-file", "e0000", "0_*.jpg"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestCollect_RemoteSimulator(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serveSim(ctx, lis, 5, zerolog.Nop()) }()
	defer func() {
		cancel()
		assert.NoError(t, <-served)
	}()

	root := t.TempDir()
	err = run([]string{
		"--agent", "greedy",
		"--run", "remote",
		"--log_root", root,
		"--sim_addr", lis.Addr().String(),
		"--num_episodes", "1",
		"--max_steps", "6",
		"--image_width", "16",
		"--image_height", "12",
		"--seed", "1",
		"--log_level", "error",
	}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	dir := filepath.Join(root, "remote", "e0000")
	records, err := episodelog.ReadRecords(filepath.Join(dir, episodelog.LogFileName))
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.LessOrEqual(t, len(records), 5)
	assert.Equal(t, 2*len(records), countImages(t, dir))
}
