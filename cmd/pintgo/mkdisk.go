package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pintgo/internal/diskimg"
)

type mkdiskOptions struct {
	loaderPath  string
	kernelPath  string
	filesysPath string
	scratchPath string
	swapPath    string
	align       string
	format      string
}

func init() {
	rootCmd.AddCommand(newMkdiskCmd())
}

func newMkdiskCmd() *cobra.Command {
	var opts mkdiskOptions

	cmd := &cobra.Command{
		Use:   "mkdisk <output> [-- kernel args...]",
		Short: "Assemble a bootable disk image",
		Long: `mkdisk builds a bootable disk image from a real-mode loader and a kernel
binary. Optional filesys, scratch and swap partitions are appended in their
fixed order. Arguments after -- become the kernel command line embedded in
the boot sector.

Example:
  pintgo mkdisk pintgo.dsk --loader loader.bin --kernel kernel.bin -- run alarm-single`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kernelArgs := []string{}
			if at := cmd.ArgsLenAtDash(); at >= 0 {
				kernelArgs = args[at:]
				args = args[:at]
			}
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one output path, got %d", len(args))
			}
			return runMkdisk(args[0], kernelArgs, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.loaderPath, "loader", "loader.bin", "Bootstrap loader binary")
	cmd.Flags().StringVar(&opts.kernelPath, "kernel", "kernel.bin", "Kernel binary for the boot partition")
	cmd.Flags().StringVar(&opts.filesysPath, "filesys", "", "File system partition content")
	cmd.Flags().StringVar(&opts.scratchPath, "scratch", "", "Scratch partition content")
	cmd.Flags().StringVar(&opts.swapPath, "swap", "", "Swap partition content")
	cmd.Flags().StringVar(&opts.align, "align", "bochs", "Partition alignment: bochs, full or none")
	cmd.Flags().StringVar(&opts.format, "format", "partitioned", "Disk format: partitioned or raw")

	return cmd
}

func runMkdisk(output string, kernelArgs []string, opts *mkdiskOptions) error {
	img, closeParts, err := buildImage(kernelArgs, opts)
	if err != nil {
		return err
	}
	defer closeParts()

	printVerbose("Writing disk image: %s\n", output)
	return diskimg.WriteFile(output, img)
}

// buildImage assembles the image description from the command line options.
// The returned cleanup function closes every opened partition source.
func buildImage(kernelArgs []string, opts *mkdiskOptions) (*diskimg.Image, func(), error) {
	align, err := parseAlign(opts.align)
	if err != nil {
		return nil, nil, err
	}
	format, err := parseFormat(opts.format)
	if err != nil {
		return nil, nil, err
	}

	loader, err := os.ReadFile(opts.loaderPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading loader: %w", err)
	}

	img := &diskimg.Image{
		Parts:  map[diskimg.Role]diskimg.Partition{},
		Loader: loader,
		Align:  align,
		Format: format,
		Args:   kernelArgs,
	}

	var files []*os.File
	closeParts := func() {
		for _, f := range files {
			f.Close()
		}
	}

	partPaths := map[diskimg.Role]string{
		diskimg.RoleKernel:  opts.kernelPath,
		diskimg.RoleFilesys: opts.filesysPath,
		diskimg.RoleScratch: opts.scratchPath,
		diskimg.RoleSwap:    opts.swapPath,
	}
	for _, role := range diskimg.RoleOrder {
		path := partPaths[role]
		if path == "" {
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			closeParts()
			return nil, nil, fmt.Errorf("opening %s partition: %w", role, err)
		}
		stat, err := f.Stat()
		if err != nil {
			f.Close()
			closeParts()
			return nil, nil, fmt.Errorf("opening %s partition: %w", role, err)
		}

		files = append(files, f)
		img.Parts[role] = diskimg.Partition{Content: f, Bytes: stat.Size()}
		printVerbose("Adding %s partition: %s (%d bytes)\n", role, path, stat.Size())
	}

	return img, closeParts, nil
}

func parseAlign(s string) (diskimg.Align, error) {
	switch s {
	case "bochs":
		return diskimg.AlignBochs, nil
	case "full":
		return diskimg.AlignFull, nil
	case "none":
		return diskimg.AlignNone, nil
	default:
		return 0, fmt.Errorf("unknown alignment %q (want bochs, full or none)", s)
	}
}

func parseFormat(s string) (diskimg.Format, error) {
	switch s {
	case "partitioned":
		return diskimg.FormatPartitioned, nil
	case "raw":
		return diskimg.FormatRaw, nil
	default:
		return 0, fmt.Errorf("unknown format %q (want partitioned or raw)", s)
	}
}
