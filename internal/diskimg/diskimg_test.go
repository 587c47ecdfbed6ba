package diskimg

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kernelImage(content string) *Image {
	return &Image{
		Parts: map[Role]Partition{
			RoleKernel: {Content: strings.NewReader(content), Bytes: int64(len(content))},
		},
		Align: AlignNone,
		Args:  []string{"boot"},
	}
}

func TestAssembleMBRLayout(t *testing.T) {
	loader := bytes.Repeat([]byte{0xEB}, LoaderSize)

	img := kernelImage("KERNEL")
	img.Loader = loader
	img.Args = []string{"run", "alarm-single"}

	var out bytes.Buffer
	require.NoError(t, Assemble(&out, img))

	disk := out.Bytes()
	require.Len(t, disk, 2*SectorSize, "MBR plus one content sector")

	mbr := disk[:SectorSize]
	assert.Equal(t, loader, mbr[:LoaderSize])

	// Command line block: argc, NUL-joined argv, zero padding.
	cmdLine := mbr[LoaderSize : LoaderSize+cmdLineBlockSize]
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(cmdLine[:4]))
	assert.Equal(t, []byte("run\x00alarm-single\x00"), cmdLine[4:4+17])
	assert.Equal(t, make([]byte, cmdLineBlockSize-4-17), cmdLine[4+17:])

	// Signature closes the sector.
	assert.Equal(t, uint16(mbrSignature), binary.LittleEndian.Uint16(mbr[SectorSize-2:]))

	// Partition table: one bootable kernel entry starting at sector 1.
	table := mbr[LoaderSize+cmdLineBlockSize : SectorSize-2]
	require.Len(t, table, partitionTableSize)
	entry := table[:16]
	assert.Equal(t, byte(bootableFlag), entry[0])
	assert.Equal(t, byte(0x20), entry[4], "kernel partition type ID")
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(entry[8:12]), "start LBA")
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(entry[12:16]), "sector count")
	assert.Equal(t, make([]byte, 48), table[16:], "unused entries stay zero")

	// The kernel content fills its sector, zero padded.
	assert.Equal(t, []byte("KERNEL"), disk[SectorSize:SectorSize+6])
	assert.Equal(t, make([]byte, SectorSize-6), disk[SectorSize+6:])
}

func TestAssembleDefaultLoaderStub(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Assemble(&out, kernelImage("K")))

	mbr := out.Bytes()[:SectorSize]
	assert.Equal(t, []byte{0xCD, 0x18}, mbr[:2], "BIOS boot-failure interrupt")
	assert.Equal(t, make([]byte, LoaderSize-2), mbr[2:LoaderSize])
}

func TestAssemblePartitionOrderAndIDs(t *testing.T) {
	img := &Image{
		Parts: map[Role]Partition{
			RoleSwap:    {Content: strings.NewReader("SWAP"), Bytes: 4},
			RoleKernel:  {Content: strings.NewReader("KERN"), Bytes: 4},
			RoleFilesys: {Content: strings.NewReader("FSYS"), Bytes: 4},
		},
		Align: AlignNone,
	}

	var out bytes.Buffer
	require.NoError(t, Assemble(&out, img))
	disk := out.Bytes()

	// Partitions appear in role order regardless of map iteration.
	assert.Equal(t, []byte("KERN"), disk[1*SectorSize:1*SectorSize+4])
	assert.Equal(t, []byte("FSYS"), disk[2*SectorSize:2*SectorSize+4])
	assert.Equal(t, []byte("SWAP"), disk[3*SectorSize:3*SectorSize+4])

	table := disk[LoaderSize+cmdLineBlockSize : SectorSize-2]
	assert.Equal(t, byte(bootableFlag), table[0])
	assert.Equal(t, byte(0x20), table[4])
	assert.Equal(t, byte(0x00), table[16])
	assert.Equal(t, byte(0x21), table[20])
	assert.Equal(t, byte(0x23), table[36], "swap follows filesys when scratch is absent")
}

func TestAssembleBochsAlignPadsToCylinder(t *testing.T) {
	img := kernelImage("K")
	img.Align = AlignBochs

	var out bytes.Buffer
	require.NoError(t, Assemble(&out, img))

	// MBR + 1 content sector, padded up to one full cylinder.
	assert.Equal(t, DefaultGeometry.cylinderSectors()*SectorSize, out.Len())
}

func TestAssembleFullAlignStartsPartitionsOnCylinders(t *testing.T) {
	img := &Image{
		Parts: map[Role]Partition{
			RoleKernel:  {Content: strings.NewReader("K"), Bytes: 1},
			RoleFilesys: {Content: strings.NewReader("F"), Bytes: 1},
		},
		Align: AlignFull,
	}

	var out bytes.Buffer
	require.NoError(t, Assemble(&out, img))

	extents, total := img.layout(DefaultGeometry)
	c := DefaultGeometry.cylinderSectors()

	// The kernel partition starts on the first track boundary and every
	// partition ends on a cylinder boundary.
	assert.Equal(t, DefaultGeometry.SectorsPerTrack, extents[RoleKernel].start)
	assert.Zero(t, (extents[RoleKernel].start+extents[RoleKernel].numSectors)%c)
	assert.Zero(t, extents[RoleFilesys].start%c)
	assert.Equal(t, total*SectorSize, out.Len())
}

func TestAssembleRawFormat(t *testing.T) {
	img := &Image{
		Parts: map[Role]Partition{
			RoleScratch: {Content: strings.NewReader("DATA"), Bytes: 4},
		},
		Align:  AlignNone,
		Format: FormatRaw,
	}

	var out bytes.Buffer
	require.NoError(t, Assemble(&out, img))

	// No MBR: the content starts at offset 0, padded to a sector.
	require.Equal(t, SectorSize, out.Len())
	assert.Equal(t, []byte("DATA"), out.Bytes()[:4])

	// Raw output carries exactly one partition.
	img.Parts[RoleSwap] = Partition{Content: strings.NewReader("X"), Bytes: 1}
	assert.Error(t, Assemble(&out, img))
}

func TestAssembleRejectsBadInput(t *testing.T) {
	img := kernelImage("K")
	img.Loader = make([]byte, LoaderSize-1)
	assert.Error(t, Assemble(&bytes.Buffer{}, img), "short loader")

	img = kernelImage("K")
	img.Args = []string{strings.Repeat("x", maxCmdLineBytes)}
	assert.Error(t, Assemble(&bytes.Buffer{}, img), "command line overflow")

	// 127 argument characters + NUL fits exactly.
	img = kernelImage("K")
	img.Args = []string{strings.Repeat("x", maxCmdLineBytes-1)}
	assert.NoError(t, Assemble(&bytes.Buffer{}, img))

	// Declared size larger than the actual content.
	img = &Image{
		Parts: map[Role]Partition{
			RoleKernel: {Content: strings.NewReader("K"), Bytes: 10},
		},
		Align: AlignNone,
	}
	assert.Error(t, Assemble(&bytes.Buffer{}, img))
}

func TestPackCHS(t *testing.T) {
	geo := DefaultGeometry

	specs := []struct {
		lba int
		exp []byte
	}{
		// LBA 0: cylinder 0, head 0, sector 1.
		{0, []byte{0, 1, 0}},
		// Last sector of the first track.
		{geo.SectorsPerTrack - 1, []byte{0, 63, 0}},
		// First sector of the second head.
		{geo.SectorsPerTrack, []byte{1, 1, 0}},
		// First sector of cylinder 1.
		{geo.cylinderSectors(), []byte{0, 1, 1}},
		// Cylinder 300: high bits land in the sector byte.
		{300 * geo.cylinderSectors(), []byte{0, 1 | 0x40, 300 & 0xFF}},
		// Past the CHS limit: clamp to 1023/254/63.
		{1024 * geo.cylinderSectors(), []byte{254, 63 | 0xC0, 0xFF}},
	}

	for _, spec := range specs {
		assert.Equal(t, spec.exp, packCHS(spec.lba, geo), "LBA %d", spec.lba)
	}
}

func TestWriteFile(t *testing.T) {
	path := t.TempDir() + "/disk.img"
	require.NoError(t, WriteFile(path, kernelImage("KERNEL")))

	var exp bytes.Buffer
	require.NoError(t, Assemble(&exp, kernelImage("KERNEL")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exp.Bytes(), got)
}
