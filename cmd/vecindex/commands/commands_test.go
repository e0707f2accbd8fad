package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecindex/vector"
)

func TestParseDeviceSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    deviceSpec
		wantErr bool
	}{
		{in: "items.db", want: deviceSpec{scheme: "file", path: "items.db"}},
		{in: "file:/tmp/x.db", want: deviceSpec{scheme: "file", path: "/tmp/x.db"}},
		{in: "badger:./data", want: deviceSpec{scheme: "badger", path: "./data"}},
		{in: "s3://bucket/indexes/items", want: deviceSpec{scheme: "s3", bucket: "bucket", prefix: "indexes/items"}},
		{in: "s3://bucket", want: deviceSpec{scheme: "s3", bucket: "bucket"}},
		{in: "minio://localhost:9000/bucket/p", want: deviceSpec{scheme: "minio", endpoint: "localhost:9000", bucket: "bucket", prefix: "p"}},
		{in: "minio://localhost:9000", wantErr: true},
		{in: "s3://", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDeviceSpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadVectors(t *testing.T) {
	items, err := readVectors(strings.NewReader(`
# comment
1 [1,2]
7 [3.5, 4]
`), vector.TypeDense)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(7), items[1].id)
	assert.Equal(t, []float32{3.5, 4}, vector.Float32s(items[1].vec))

	_, err = readVectors(strings.NewReader("x [1,2]\n"), vector.TypeDense)
	assert.ErrorContains(t, err, "line 1")

	_, err = readVectors(strings.NewReader("1\n"), vector.TypeDense)
	assert.Error(t, err)

	bits, err := readVectors(strings.NewReader("3 0110\n"), vector.TypeBinary)
	require.NoError(t, err)
	assert.Equal(t, 4, bits[0].vec.Dim())
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	device := "file:" + filepath.Join(dir, "items.db")

	params := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(params, []byte("method: hnsw\ndimension: 2\nm: 4\n"), 0o600))

	var input strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&input, "%d [%d,%d]\n", i, i, i%7)
	}
	vectors := filepath.Join(dir, "vectors.txt")
	require.NoError(t, os.WriteFile(vectors, []byte(input.String()), 0o600))

	out := run(t, "-d", device, "create", "-f", params)
	assert.Contains(t, out, "created hnsw index")

	out = run(t, "-d", device, "build", "-i", vectors)
	assert.Contains(t, out, "built 50 vectors")

	out = run(t, "-d", device, "search", "--k", "3", "[10,3]")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"1", "10", "0"}, strings.Fields(lines[1]))

	out = run(t, "-d", device, "delete", "10", "11")
	assert.Contains(t, out, "deleted 2 ids")

	out = run(t, "-d", device, "vacuum")
	assert.Contains(t, out, "reclaimed 2")

	out = run(t, "-d", device, "inspect")
	assert.Contains(t, out, "vectors: 48")
	assert.Contains(t, out, "method: hnsw")
}
