package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/zkmemsim/mem/addr"
	"github.com/sarchlab/zkmemsim/mem/traffic"
)

// stageFile is the YAML form of a prefetch and a drain. Every range is a
// two-element list [start, end].
type stageFile struct {
	Mergable bool         `yaml:"mergable"`
	Prefetch [][][]uint64 `yaml:"prefetch"`
	Drain    [][][]uint64 `yaml:"drain"`
}

func newMergeCmd() *cobra.Command {
	mergeCmd := &cobra.Command{
		Use:   "merge",
		Short: "Remove redundant traffic from a prefetch and a drain.",
		Long: "`merge --input stages.yaml` reads the stages of a prefetch and " +
			"a drain, merges them, and prints the result in the same format. " +
			"Use `-` to read from standard input.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, _ := cmd.Flags().GetString("input")

			var r io.Reader = cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()

				r = f
			}

			prefetch, drain, err := readStages(r)
			if err != nil {
				return err
			}

			traffic.Merge(prefetch, drain)

			return writeStages(cmd.OutOrStdout(), prefetch, drain)
		},
	}

	mergeCmd.Flags().String("input", "-", "YAML file with the stages.")

	return mergeCmd
}

func toFetch(t traffic.FetchType, mergable bool, stages [][][]uint64) (*traffic.Fetch, error) {
	f := traffic.NewFetch(t)
	f.Mergable = mergable

	for i, stage := range stages {
		ranges := make([]addr.Range, 0, len(stage))

		for _, pair := range stage {
			if len(pair) != 2 {
				return nil, fmt.Errorf(
					"%s stage %d: a range needs a start and an end, got %v",
					t, i, pair)
			}

			ranges = append(ranges, addr.R(pair[0], pair[1]))
		}

		f.PushRanges(ranges)
		f.Delay = append(f.Delay, 0)
	}

	return f, f.Validate()
}

func fromFetch(f *traffic.Fetch) [][][]uint64 {
	stages := make([][][]uint64, f.Len())

	for i, stage := range f.Addr {
		stages[i] = make([][]uint64, len(stage))
		for j, r := range stage {
			stages[i][j] = []uint64{r.Start, r.End}
		}
	}

	return stages
}

func readStages(r io.Reader) (prefetch, drain *traffic.Fetch, err error) {
	sf := stageFile{}

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	err = decoder.Decode(&sf)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing stages: %w", err)
	}

	prefetch, err = toFetch(traffic.Read, sf.Mergable, sf.Prefetch)
	if err != nil {
		return nil, nil, err
	}

	drain, err = toFetch(traffic.Write, sf.Mergable, sf.Drain)
	if err != nil {
		return nil, nil, err
	}

	return prefetch, drain, nil
}

func writeStages(w io.Writer, prefetch, drain *traffic.Fetch) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	err := encoder.Encode(stageFile{
		Mergable: prefetch.Mergable,
		Prefetch: fromFetch(prefetch),
		Drain:    fromFetch(drain),
	})
	if err != nil {
		return err
	}

	return encoder.Close()
}
