package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/zkmemsim/config"
	"github.com/sarchlab/zkmemsim/kernel"
	"github.com/sarchlab/zkmemsim/mem/alloc"
)

func newVecOpCmd() *cobra.Command {
	vecopCmd := &cobra.Command{
		Use:   "vecop",
		Short: "Simulate an element-wise vector operation.",
		Long: "`vecop --op mul --length N` computes out = a op b over N " +
			"elements. With --scalar, b is a single element.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opName, _ := cmd.Flags().GetString("op")
			length, _ := cmd.Flags().GetUint64("length")
			scalar, _ := cmd.Flags().GetBool("scalar")

			op, err := kernel.ParseVecOpType(opName)
			if err != nil {
				return err
			}

			return runKernels(cmd, func(
				cfg config.Config,
				mem *alloc.MemAlloc,
			) ([]kernel.Kernel, error) {
				vc := kernel.VecOpConfig{
					VectorLength: length,
					OpType:       op,
					OpSrc:        kernel.VV,
				}

				operand1Len := length
				if scalar {
					vc.OpSrc = kernel.VS
					operand1Len = 1
				}

				var err error

				vc.AddrInput0, err = mem.Alloc("a", length*config.ElemSize)
				if err != nil {
					return nil, err
				}

				vc.AddrInput1, err = mem.Alloc("b", operand1Len*config.ElemSize)
				if err != nil {
					return nil, err
				}

				vc.AddrOutput, err = mem.Alloc("out", length*config.ElemSize)
				if err != nil {
					return nil, err
				}

				return []kernel.Kernel{
					kernel.NewVecOp(vc, cfg.Arch, cfg.Enable.Other),
				}, nil
			})
		},
	}

	vecopCmd.Flags().String("op", "add", "Operation: add, sub or mul.")
	vecopCmd.Flags().Uint64("length", 1<<16, "Number of elements.")
	vecopCmd.Flags().Bool("scalar", false, "Use a scalar second operand.")
	addRunFlags(vecopCmd)

	return vecopCmd
}
