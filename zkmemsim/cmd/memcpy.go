package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/zkmemsim/config"
	"github.com/sarchlab/zkmemsim/kernel"
	"github.com/sarchlab/zkmemsim/mem/alloc"
)

func newMemCpyCmd() *cobra.Command {
	memcpyCmd := &cobra.Command{
		Use:   "memcpy",
		Short: "Simulate copying a vector.",
		Long: "`memcpy --length N` copies N elements. Source and destination " +
			"are allocated unless given with --src and --dst.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			length, _ := cmd.Flags().GetUint64("length")
			src, _ := cmd.Flags().GetUint64("src")
			dst, _ := cmd.Flags().GetUint64("dst")

			return runKernels(cmd, func(
				cfg config.Config,
				mem *alloc.MemAlloc,
			) ([]kernel.Kernel, error) {
				var err error

				src, err = allocIfZero(mem, "src", src, length)
				if err != nil {
					return nil, err
				}

				dst, err = allocIfZero(mem, "dst", dst, length)
				if err != nil {
					return nil, err
				}

				k := kernel.NewMemCpy(kernel.MemCpyConfig{
					AddrInput:   src,
					AddrOutput:  dst,
					InputLength: length,
				}, cfg.Arch, cfg.Enable.Other)

				return []kernel.Kernel{k}, nil
			})
		},
	}

	memcpyCmd.Flags().Uint64("length", 1<<16, "Number of elements.")
	memcpyCmd.Flags().Uint64("src", 0, "Source address.")
	memcpyCmd.Flags().Uint64("dst", 0, "Destination address.")
	addRunFlags(memcpyCmd)

	return memcpyCmd
}

// allocIfZero allocates a vector of length elements unless addr is already
// set.
func allocIfZero(mem *alloc.MemAlloc, name string, addr, length uint64) (uint64, error) {
	if addr != 0 {
		return addr, nil
	}

	return mem.Alloc(name, length*config.ElemSize)
}
