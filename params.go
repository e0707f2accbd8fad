package vecindex

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/internal/hnsw"
	"github.com/hupe1980/vecindex/internal/ivf"
	"github.com/hupe1980/vecindex/vector"
)

// Method selects the index structure.
type Method string

const (
	// MethodHNSW is the multi-layer proximity graph.
	MethodHNSW Method = "hnsw"

	// MethodIVFFlat is the k-means partitioned inverted-list index.
	MethodIVFFlat Method = "ivfflat"
)

// ParseMethod returns the Method named by s.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodHNSW, MethodIVFFlat:
		return m, nil
	default:
		return "", index.InvalidParameter("method", "unknown method %q", s)
	}
}

// Params holds the persistent parameters of an index. Fields that do not
// apply to Method are ignored.
type Params struct {
	Method       Method        `yaml:"method"`
	Dimension    int           `yaml:"dimension"`
	VectorType   vector.Type   `yaml:"vector_type"`
	DistanceKind distance.Kind `yaml:"distance"`

	// HNSW
	M              int `yaml:"m,omitempty"`
	EFConstruction int `yaml:"ef_construction,omitempty"`
	EFSearch       int `yaml:"ef_search,omitempty"`
	MaxLevel       int `yaml:"max_level,omitempty"`

	// IVFFlat
	NumLists      int     `yaml:"num_lists,omitempty"`
	NumProbes     int     `yaml:"num_probes,omitempty"`
	MaxIterations int     `yaml:"max_iterations,omitempty"`
	Tolerance     float64 `yaml:"tolerance,omitempty"`
	SampleSize    int     `yaml:"sample_size,omitempty"`

	Seed uint64 `yaml:"seed,omitempty"`
}

// DefaultParams returns the defaults for method. Dimension is left zero.
func DefaultParams(method Method) Params {
	p := Params{
		Method:       method,
		VectorType:   vector.TypeDense,
		DistanceKind: distance.L2,
	}
	switch method {
	case MethodIVFFlat:
		d := ivf.DefaultOptions
		p.NumLists = d.NumLists
		p.NumProbes = d.NumProbes
		p.MaxIterations = d.MaxIterations
		p.Tolerance = d.Tolerance
	default:
		d := hnsw.DefaultOptions
		p.M = d.M
		p.EFConstruction = d.EFConstruction
		p.EFSearch = d.EFSearch
		p.MaxLevel = d.MaxLevel
	}
	return p
}

// Validate checks p without touching storage.
func (p Params) Validate() error {
	switch p.Method {
	case MethodHNSW:
		o := p.graphOptions()
		return o.Validate()
	case MethodIVFFlat:
		o := p.clusterOptions()
		return o.Validate()
	default:
		return index.InvalidParameter("method", "unknown method %q", p.Method)
	}
}

func (p Params) graphOptions() hnsw.Options {
	o := hnsw.DefaultOptions
	o.Dimension = p.Dimension
	o.VectorType = p.VectorType
	o.Distance = p.DistanceKind
	o.M = p.M
	o.EFConstruction = p.EFConstruction
	o.EFSearch = p.EFSearch
	o.MaxLevel = p.MaxLevel
	o.Seed = p.Seed
	return o
}

func (p Params) clusterOptions() ivf.Options {
	o := ivf.DefaultOptions
	o.Dimension = p.Dimension
	o.VectorType = p.VectorType
	o.Distance = p.DistanceKind
	o.NumLists = p.NumLists
	o.NumProbes = p.NumProbes
	o.MaxIterations = p.MaxIterations
	o.Tolerance = p.Tolerance
	o.SampleSize = p.SampleSize
	o.Seed = p.Seed
	return o
}

func graphParams(o hnsw.Options) Params {
	return Params{
		Method:         MethodHNSW,
		Dimension:      o.Dimension,
		VectorType:     o.VectorType,
		DistanceKind:   o.Distance,
		M:              o.M,
		EFConstruction: o.EFConstruction,
		EFSearch:       o.EFSearch,
		MaxLevel:       o.MaxLevel,
		Seed:           o.Seed,
	}
}

func clusterParams(o ivf.Options) Params {
	return Params{
		Method:        MethodIVFFlat,
		Dimension:     o.Dimension,
		VectorType:    o.VectorType,
		DistanceKind:  o.Distance,
		NumLists:      o.NumLists,
		NumProbes:     o.NumProbes,
		MaxIterations: o.MaxIterations,
		Tolerance:     o.Tolerance,
		SampleSize:    o.SampleSize,
		Seed:          o.Seed,
	}
}

// LoadParams decodes YAML parameters from r. The method is read first and
// its defaults fill every field the document leaves out. Unknown fields
// are rejected.
func LoadParams(r io.Reader) (Params, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Params{}, fmt.Errorf("read params: %w", err)
	}

	var head struct {
		Method Method `yaml:"method"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return Params{}, fmt.Errorf("decode params: %w", err)
	}
	if head.Method == "" {
		head.Method = MethodHNSW
	}
	if _, err := ParseMethod(string(head.Method)); err != nil {
		return Params{}, err
	}

	p := DefaultParams(head.Method)
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return Params{}, fmt.Errorf("decode params: %w", err)
	}
	if p.Method == "" {
		p.Method = head.Method
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// LoadParamsFile reads parameters from a YAML file.
func LoadParamsFile(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, err
	}
	defer f.Close()
	return LoadParams(f)
}

// YAML encodes p as a YAML document.
func (p Params) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}
