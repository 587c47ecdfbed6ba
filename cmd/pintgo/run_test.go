package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQemuArgs(t *testing.T) {
	specs := []struct {
		descr string
		opts  runOptions
		exp   []string
	}{
		{
			descr: "single disk, defaults",
			opts:  runOptions{disks: []string{"os.dsk"}, mem: 4, debugger: "none"},
			exp:   []string{"-hda", "os.dsk", "-m", "4"},
		},
		{
			descr: "all four disks",
			opts:  runOptions{disks: []string{"a", "b", "c", "d"}, mem: 4, debugger: "none"},
			exp:   []string{"-hda", "a", "-hdb", "b", "-hdc", "c", "-hdd", "d", "-m", "4"},
		},
		{
			descr: "gdb stops the CPU and opens the gdbserver port",
			opts:  runOptions{disks: []string{"os.dsk"}, mem: 8, debugger: "gdb"},
			exp:   []string{"-hda", "os.dsk", "-m", "8", "-s", "-S"},
		},
	}

	for _, spec := range specs {
		assert.Equal(t, spec.exp, qemuArgs(&spec.opts), spec.descr)
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	err := runRun(&runOptions{sim: "bochs", debugger: "none", disks: []string{"os.dsk"}})
	assert.ErrorContains(t, err, "unknown simulator")

	err = runRun(&runOptions{sim: "qemu", debugger: "lldb", disks: []string{"os.dsk"}})
	assert.ErrorContains(t, err, "unknown debugger")
}
