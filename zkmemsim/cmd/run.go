package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/zkmemsim/config"
	"github.com/sarchlab/zkmemsim/datarecording"
	"github.com/sarchlab/zkmemsim/kernel"
	"github.com/sarchlab/zkmemsim/mem/alloc"
	"github.com/sarchlab/zkmemsim/monitoring"
	"github.com/sarchlab/zkmemsim/ramtrace"
	"github.com/sarchlab/zkmemsim/system"
)

// addRunFlags adds the flags shared by the commands that simulate kernels.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "YAML configuration file.")
	cmd.Flags().String("env-file", ".env", "Dotenv file with ZKMEMSIM_* overrides.")
	cmd.Flags().String("trace-dir", "", "Directory of the request trace.")
	cmd.Flags().String("name", "", "Name of the request trace.")
	cmd.Flags().Int("repeat", 1, "How many times the kernel runs.")
	cmd.Flags().Bool("fuse", false, "Run all repetitions as one fused stage.")
	cmd.Flags().Bool("record", false, "Record requests and merge statistics in SQLite.")
	cmd.Flags().String("record-path", "",
		"Path of the SQLite file without extension. Empty picks a unique name.")
	cmd.Flags().Bool("monitor", false, "Serve a monitoring page while running.")
	cmd.Flags().Int("monitor-port", 0, "Port of the monitoring server.")
	cmd.Flags().Bool("open-browser", false, "Open the monitoring page in a browser.")
	cmd.Flags().Bool("ramsim", false, "Run the RAM simulator on the trace.")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		var err error

		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}

	envFile, _ := cmd.Flags().GetString("env-file")

	err := cfg.ApplyEnv(envFile)
	if err != nil {
		return cfg, err
	}

	if dir, _ := cmd.Flags().GetString("trace-dir"); dir != "" {
		cfg.RAM.TraceDir = dir
	}

	if name, _ := cmd.Flags().GetString("name"); name != "" {
		cfg.RAM.Name = name
	}

	return cfg, cfg.Validate()
}

// kernelFactory creates the kernels of one repetition.
type kernelFactory func(cfg config.Config, mem *alloc.MemAlloc) ([]kernel.Kernel, error)

type runner struct {
	cmd     *cobra.Command
	cfg     config.Config
	closers []io.Closer

	recorder datarecording.DataRecorder
	writer   *ramtrace.Writer
	sys      *system.System
	monitor  *monitoring.Monitor
}

func (r *runner) close() {
	if r.monitor != nil {
		err := r.monitor.Shutdown(context.Background())
		if err != nil {
			logrus.Warnf("stopping monitor: %v", err)
		}
	}

	for i := len(r.closers) - 1; i >= 0; i-- {
		err := r.closers[i].Close()
		if err != nil {
			logrus.Warnf("closing: %v", err)
		}
	}
}

func (r *runner) create(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r.closers = append(r.closers, f)

	return f, nil
}

func (r *runner) setupTrace() error {
	ram := r.cfg.RAM

	err := os.MkdirAll(ram.TraceDir, 0o755)
	if err != nil {
		return err
	}

	base := filepath.Join(ram.TraceDir, ram.Name)

	bin, err := r.create(base + ".bin")
	if err != nil {
		return err
	}

	b := ramtrace.MakeBuilder().
		WithSimulator(ram.ExecutablePath, ram.ConfigPath)

	if ram.TextOutput {
		text, err := r.create(base + ".txt")
		if err != nil {
			return err
		}

		b = b.WithTextOutput(text)
	}

	if record, _ := r.cmd.Flags().GetBool("record"); record {
		path, _ := r.cmd.Flags().GetString("record-path")
		r.recorder = datarecording.New(path)
		r.closers = append(r.closers, r.recorder)
		b = b.WithDataRecorder(r.recorder)
	}

	r.writer, err = b.Build(bin)

	return err
}

func (r *runner) setupMonitor() error {
	enabled, _ := r.cmd.Flags().GetBool("monitor")
	if !enabled {
		return nil
	}

	port, _ := r.cmd.Flags().GetInt("monitor-port")

	r.monitor = monitoring.NewMonitor().WithPortNumber(port)
	r.monitor.RegisterTrafficSource("system", r.sys)
	r.monitor.RegisterObject("config", &r.cfg)
	mem := r.sys.Allocator()
	r.monitor.RegisterSnapshot("allocator", func() any {
		snapshot := mem.Snapshot()
		return &snapshot
	})

	url, err := r.monitor.StartServer()
	if err != nil {
		return err
	}

	if open, _ := r.cmd.Flags().GetBool("open-browser"); open {
		err = r.monitor.OpenInBrowser(url)
		if err != nil {
			logrus.Warnf("cannot open browser: %v", err)
		}
	}

	return nil
}

// runKernels builds the system, runs the kernels made by factory and
// reports the trace.
func runKernels(cmd *cobra.Command, factory kernelFactory) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	r := &runner{cmd: cmd, cfg: cfg}
	defer r.close()

	err = r.setupTrace()
	if err != nil {
		return err
	}

	mem := alloc.New(uint64(cfg.Memory.SizeGB), uint64(cfg.Memory.Align))

	r.sys = system.MakeBuilder().
		WithConfig(cfg).
		WithAllocator(mem).
		WithTraceWriter(r.writer).
		WithDataRecorder(r.recorder).
		Build()

	err = r.setupMonitor()
	if err != nil {
		return err
	}

	kernels, err := factory(cfg, mem)
	if err != nil {
		return err
	}

	err = r.run(kernels)
	if err != nil {
		return err
	}

	err = r.writer.Flush()
	if err != nil {
		return err
	}

	return r.report()
}

func (r *runner) run(kernels []kernel.Kernel) error {
	repeat, _ := r.cmd.Flags().GetInt("repeat")
	fuse, _ := r.cmd.Flags().GetBool("fuse")

	var bar *monitoring.ProgressBar
	if r.monitor != nil {
		bar = r.monitor.CreateProgressBar("kernels", uint64(repeat*len(kernels)))
		defer r.monitor.CompleteProgressBar(bar)
	}

	if fuse {
		all := make([]kernel.Kernel, 0, repeat*len(kernels))
		for range repeat {
			all = append(all, kernels...)
		}

		err := r.sys.RunVec(all)
		if bar != nil {
			bar.IncrementFinished(uint64(len(all)))
		}

		return err
	}

	for range repeat {
		for _, k := range kernels {
			err := r.sys.RunOnce(k)
			if err != nil {
				return err
			}

			if bar != nil {
				bar.IncrementFinished(1)
			}
		}
	}

	return nil
}

func (r *runner) report() error {
	out := r.cmd.OutOrStdout()
	report := r.sys.TrafficReport()

	logrus.Infof("%d kernel runs, %d stages, %d ops", report.Calls,
		report.Stages, report.Ops)

	fmt.Fprintf(out, "prefetch lines: %d -> %d, bytes: %d -> %d\n",
		report.PrefetchLinesBefore, report.PrefetchLinesAfter,
		report.PrefetchBytesBefore, report.PrefetchBytesAfter)
	fmt.Fprintf(out, "drain lines: %d -> %d, bytes: %d -> %d\n",
		report.DrainLinesBefore, report.DrainLinesAfter,
		report.DrainBytesBefore, report.DrainBytesAfter)
	fmt.Fprint(out, r.writer.Summary())

	computation := r.sys.Computation()
	for _, kernelType := range slices.Sorted(maps.Keys(computation)) {
		fmt.Fprintf(out, "computation %s: %d\n", kernelType, computation[kernelType])
	}

	ramsim, _ := r.cmd.Flags().GetBool("ramsim")
	if !ramsim {
		return nil
	}

	log, err := r.create(filepath.Join(r.cfg.RAM.TraceDir, r.cfg.RAM.Name+".log"))
	if err != nil {
		return err
	}

	return r.writer.Run(r.cmd.Context(), log)
}
