package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/vecindex/resource"
	"github.com/hupe1980/vecindex/vector"
)

type item struct {
	id  uint64
	vec vector.Vector
}

// readVectors parses a vector file: one "<id> <vector>" per line, vectors
// in the text form of vector.Parse. Blank lines and lines starting with '#'
// are skipped.
func readVectors(r io.Reader, t vector.Type) ([]item, error) {
	var items []item
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 16<<20)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		idText, vecText, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: want \"<id> <vector>\"", line)
		}
		id, err := strconv.ParseUint(idText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id: %w", line, err)
		}
		v, err := vector.Parse(t, vecText)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item{id: id, vec: v})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// loadVectors reads the vector file at path ("-" for stdin) through the IO
// limiter of rc.
func loadVectors(ctx context.Context, path string, t vector.Type, rc *resource.Controller) ([]item, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return readVectors(resource.NewRateLimitedReader(ctx, r, rc), t)
}

func seqOf(items []item) iter.Seq2[uint64, vector.Vector] {
	return func(yield func(uint64, vector.Vector) bool) {
		for _, it := range items {
			if !yield(it.id, it.vec) {
				return
			}
		}
	}
}
