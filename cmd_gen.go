package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/dot5enko/volume-block-index/io"
	"github.com/dot5enko/volume-block-index/schema"
	"github.com/spf13/cobra"
)

const (
	patternSphere   = "sphere"
	patternGradient = "gradient"
	patternNoise    = "noise"
)

// sample returns a value in [0, 1] for voxel x, y, z.
func sample(pattern string, dims schema.Vec3, x, y, z uint64, rng *rand.Rand) float64 {
	switch pattern {
	case patternGradient:
		return float64(x) / float64(max(dims.X-1, 1))
	case patternNoise:
		return rng.Float64()
	default:
		// dense ball in the middle, empty background
		cx, cy, cz := float64(dims.X)/2, float64(dims.Y)/2, float64(dims.Z)/2
		r := math.Min(cx, math.Min(cy, cz))
		dx, dy, dz := float64(x)+0.5-cx, float64(y)+0.5-cy, float64(z)+0.5-cz
		d := math.Sqrt(dx*dx+dy*dy+dz*dz) / r
		if d >= 1 {
			return 0
		}
		return 1 - d
	}
}

func genVolume[T schema.NumericTypes](dims schema.Vec3, pattern string, scale float64, seed int64) []T {
	rng := rand.New(rand.NewSource(seed))
	data := make([]T, dims.Product())

	i := 0
	for z := uint64(0); z < dims.Z; z++ {
		for y := uint64(0); y < dims.Y; y++ {
			for x := uint64(0); x < dims.X; x++ {
				data[i] = T(sample(pattern, dims, x, y, z, rng) * scale)
				i++
			}
		}
	}
	return data
}

func writeVolume[T schema.NumericTypes](path string, dims schema.Vec3, pattern string, scale float64, seed int64) error {
	return io.DumpNumbersArrayBlock(path, genVolume[T](dims, pattern, scale, seed))
}

func generate(path string, typ schema.DataType, dims schema.Vec3, pattern string, seed int64) error {
	switch typ {
	case schema.Int8DataType:
		return writeVolume[int8](path, dims, pattern, math.MaxInt8, seed)
	case schema.Uint8DataType:
		return writeVolume[uint8](path, dims, pattern, math.MaxUint8, seed)
	case schema.Int16DataType:
		return writeVolume[int16](path, dims, pattern, math.MaxInt16, seed)
	case schema.Uint16DataType:
		return writeVolume[uint16](path, dims, pattern, math.MaxUint16, seed)
	case schema.Int32DataType:
		return writeVolume[int32](path, dims, pattern, math.MaxInt32, seed)
	case schema.Uint32DataType:
		return writeVolume[uint32](path, dims, pattern, math.MaxUint32, seed)
	case schema.Float32DataType:
		return writeVolume[float32](path, dims, pattern, 1, seed)
	default:
		return fmt.Errorf("%w: %d", schema.ErrUnknownDataType, typ)
	}
}

func (c *cliT) newGenCmd() *cobra.Command {
	var dimsFlag, typeFlag, pattern string
	var seed int64

	cmd := &cobra.Command{
		Use:   "gen <raw-volume>",
		Short: "write a synthetic raw volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dims, err := schema.ParseVec3(dimsFlag)
			if err != nil {
				return fmt.Errorf("--dims: %w", err)
			}
			typ, err := schema.ParseDataType(typeFlag)
			if err != nil {
				return err
			}
			switch pattern {
			case patternSphere, patternGradient, patternNoise:
			default:
				return fmt.Errorf("unknown pattern %q", pattern)
			}

			if err := generate(args[0], typ, dims, pattern, seed); err != nil {
				return err
			}

			successColor.Fprintf(cmd.OutOrStdout(), "%s: %s %s voxels, %d bytes\n",
				args[0], dims, typ, dims.Product()*uint64(typ.Size()))
			return nil
		},
	}

	cmd.Flags().StringVar(&dimsFlag, "dims", "64,64,64", "voxel extent x,y,z")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "uint8", "voxel data type")
	cmd.Flags().StringVar(&pattern, "pattern", patternSphere, "sphere, gradient or noise")
	cmd.Flags().Int64Var(&seed, "seed", 1, "noise seed")

	return cmd
}
