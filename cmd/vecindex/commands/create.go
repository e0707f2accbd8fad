package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecindex"
	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/vector"
)

var createFlags struct {
	file       string
	method     string
	dimension  int
	vectorType string
	distance   string
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Format a device with index parameters",
	Long: `Format an empty device and store the index parameters on it.

Parameters come from a YAML file (-f) or from flags.

Example parameter file (params.yaml):
  method: hnsw
  dimension: 384
  distance: cosine
  m: 16
  ef_construction: 64

Examples:
  vecindex -d file:items.db create -f params.yaml
  vecindex -d badger:./items create --method ivfflat --dimension 128`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := createParams()
		if err != nil {
			return err
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		dev, err := openDevice(cmd.Context(), globalFlags.device, e)
		if err != nil {
			return err
		}
		idx, err := vecindex.Create(cmd.Context(), dev, params, e.options()...)
		if err != nil {
			_ = dev.Close()
			return err
		}
		if err := idx.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s index (dimension %d, %s, %s)\n",
			params.Method, params.Dimension, params.VectorType, params.DistanceKind)
		return nil
	},
}

func init() {
	f := createCmd.Flags()
	f.StringVarP(&createFlags.file, "file", "f", "", "YAML parameter file")
	f.StringVar(&createFlags.method, "method", string(vecindex.MethodHNSW), "index method (hnsw, ivfflat)")
	f.IntVar(&createFlags.dimension, "dimension", 0, "vector dimension")
	f.StringVar(&createFlags.vectorType, "type", "dense", "vector type (dense, half, binary, sparse)")
	f.StringVar(&createFlags.distance, "distance", "l2", "distance (l2, ip, cosine, hamming, jaccard)")
}

func createParams() (vecindex.Params, error) {
	if createFlags.file != "" {
		return vecindex.LoadParamsFile(createFlags.file)
	}

	method, err := vecindex.ParseMethod(createFlags.method)
	if err != nil {
		return vecindex.Params{}, err
	}
	p := vecindex.DefaultParams(method)
	p.Dimension = createFlags.dimension
	if p.VectorType, err = vector.ParseType(createFlags.vectorType); err != nil {
		return vecindex.Params{}, err
	}
	if p.DistanceKind, err = distance.ParseKind(createFlags.distance); err != nil {
		return vecindex.Params{}, err
	}
	return p, p.Validate()
}
