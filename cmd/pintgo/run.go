package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"
)

type runOptions struct {
	sim      string
	debugger string
	mem      int
	disks    []string
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <image>...",
		Short: "Boot disk images under an emulator",
		Long: `run boots up to four disk images under an emulator. The images attach in
order as the first through fourth IDE disks; the first one must be bootable.

Example:
  pintgo run pintgo.dsk
  pintgo run pintgo.dsk --mem 8 --debugger gdb`,
		Args: cobra.RangeArgs(1, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.disks = args
			return runRun(&opts)
		},
	}

	cmd.Flags().StringVar(&opts.sim, "sim", "qemu", "Simulator to run the kernel under")
	cmd.Flags().StringVar(&opts.debugger, "debugger", "none", "Debugger to attach: none or gdb")
	cmd.Flags().IntVar(&opts.mem, "mem", 4, "Physical memory to give the machine in MB")

	return cmd
}

func runRun(opts *runOptions) error {
	if opts.sim != "qemu" {
		return fmt.Errorf("unknown simulator %q (want qemu)", opts.sim)
	}
	if opts.debugger != "none" && opts.debugger != "gdb" {
		return fmt.Errorf("unknown debugger %q (want none or gdb)", opts.debugger)
	}

	cmd := exec.Command("qemu-system-i386", qemuArgs(opts)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	printVerbose("Starting: %s\n", cmd)
	return cmd.Run()
}

// qemuArgs builds the QEMU argument list: one IDE disk per image, the memory
// size and, with the gdb debugger, a stopped gdbserver on the default port.
func qemuArgs(opts *runOptions) []string {
	diskFlags := []string{"-hda", "-hdb", "-hdc", "-hdd"}

	var args []string
	for i, disk := range opts.disks {
		args = append(args, diskFlags[i], disk)
	}

	args = append(args, "-m", strconv.Itoa(opts.mem))

	if opts.debugger == "gdb" {
		args = append(args, "-s", "-S")
	}

	return args
}
