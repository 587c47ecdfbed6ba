// Package diskimg assembles bootable disk images for the kernel: a 512-byte
// MBR holding the real-mode loader, the kernel command line and the
// partition table, followed by the partition contents padded to sector
// boundaries.
package diskimg

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// LoaderSize is the exact size of the real-mode loader blob embedded
	// at the start of the MBR.
	LoaderSize = 314

	// SectorSize is the disk sector size in bytes.
	SectorSize = 512

	// maxCmdLineBytes bounds the NUL-joined argument string embedded in
	// the MBR.
	maxCmdLineBytes = 128

	// cmdLineBlockSize is the fixed size of the command line block: a
	// 32-bit argument count followed by the argument bytes.
	cmdLineBlockSize = 4 + maxCmdLineBytes

	partitionTableSize = 64
	mbrSignature       = 0xAA55

	// bootableFlag marks the partition the BIOS should boot from.
	bootableFlag = 0x80
)

// Role identifies the purpose of a disk partition. Partitions are laid out
// on disk in Role order.
type Role int

const (
	RoleKernel Role = iota
	RoleFilesys
	RoleScratch
	RoleSwap
	numRoles
)

// RoleOrder lists the roles in their fixed on-disk order.
var RoleOrder = [...]Role{RoleKernel, RoleFilesys, RoleScratch, RoleSwap}

// String implements fmt.Stringer for Role.
func (r Role) String() string {
	switch r {
	case RoleKernel:
		return "kernel"
	case RoleFilesys:
		return "filesys"
	case RoleScratch:
		return "scratch"
	case RoleSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// partitionID returns the partition type byte for the role. The IDs match
// the ones used by the original Pintos tooling.
func (r Role) partitionID() byte {
	return 0x20 + byte(r)
}

// Align selects how partitions are aligned on the disk.
type Align int

const (
	// AlignBochs pads the disk to a whole number of cylinders, which the
	// bochs emulator requires.
	AlignBochs Align = iota

	// AlignFull additionally starts every partition on a cylinder
	// boundary.
	AlignFull

	// AlignNone packs partitions back to back.
	AlignNone
)

// Format selects the on-disk layout.
type Format int

const (
	// FormatPartitioned produces an MBR followed by the partitions.
	FormatPartitioned Format = iota

	// FormatRaw writes a single partition's content with no MBR.
	FormatRaw
)

// Geometry describes the CHS geometry the BIOS reports for the disk.
type Geometry struct {
	Heads           int
	SectorsPerTrack int
}

// DefaultGeometry matches what QEMU and bochs report for small disks.
var DefaultGeometry = Geometry{Heads: 16, SectorsPerTrack: 63}

func (g Geometry) cylinderSectors() int {
	return g.Heads * g.SectorsPerTrack
}

// Partition supplies the content for one disk partition.
type Partition struct {
	// Content provides the partition bytes.
	Content io.Reader

	// Bytes is the content length. The partition occupies the smallest
	// whole number of sectors that holds it.
	Bytes int64
}

// Image describes a disk image to assemble.
type Image struct {
	// Parts maps each populated role to its content.
	Parts map[Role]Partition

	// Loader holds the real-mode loader blob (exactly LoaderSize bytes).
	// When nil, a stub that invokes the BIOS reboot interrupt is emitted
	// instead.
	Loader []byte

	// Geometry is the disk geometry; the zero value selects
	// DefaultGeometry.
	Geometry Geometry

	Align  Align
	Format Format

	// Args is the kernel command line stored in the MBR.
	Args []string
}

type partExtent struct {
	start      int
	numSectors int
}

// layout computes each partition's start sector and sector count, plus the
// total number of sectors occupied so far.
func (img *Image) layout(geo Geometry) (map[Role]partExtent, int) {
	alignParts := img.Align == AlignFull

	totalSectors := 0
	if img.Format == FormatPartitioned {
		if alignParts {
			totalSectors = geo.SectorsPerTrack
		} else {
			totalSectors = 1
		}
	}

	extents := make(map[Role]partExtent, len(img.Parts))
	for _, role := range RoleOrder {
		part, ok := img.Parts[role]
		if !ok {
			continue
		}

		start := totalSectors
		end := start + int((part.Bytes+SectorSize-1)/SectorSize)
		if alignParts {
			c := geo.cylinderSectors()
			end = (end + c - 1) / c * c
		}

		extents[role] = partExtent{start: start, numSectors: end - start}
		totalSectors = end
	}

	return extents, totalSectors
}

// Assemble writes the disk image to w.
func Assemble(w io.Writer, img *Image) error {
	geo := img.Geometry
	if geo == (Geometry{}) {
		geo = DefaultGeometry
	}

	if img.Format == FormatRaw && len(img.Parts) != 1 {
		return fmt.Errorf("diskimg: raw format requires exactly one partition, got %d", len(img.Parts))
	}
	if img.Loader != nil && len(img.Loader) != LoaderSize {
		return fmt.Errorf("diskimg: loader must be exactly %d bytes, got %d", LoaderSize, len(img.Loader))
	}

	extents, totalSectors := img.layout(geo)

	if img.Format == FormatPartitioned {
		mbr, err := buildMBR(img.Loader, img.Args, extents, geo)
		if err != nil {
			return err
		}
		if _, err := w.Write(mbr); err != nil {
			return err
		}
		if img.Align == AlignFull {
			// Advance to the first track boundary where the kernel
			// partition starts.
			if err := writeZeros(w, (geo.SectorsPerTrack-1)*SectorSize); err != nil {
				return err
			}
		}
	}

	for _, role := range RoleOrder {
		part, ok := img.Parts[role]
		if !ok {
			continue
		}

		n, err := io.Copy(w, part.Content)
		if err != nil {
			return fmt.Errorf("diskimg: copying %s partition: %w", role, err)
		}
		if n != part.Bytes {
			return fmt.Errorf("diskimg: %s partition content is %d bytes, expected %d", role, n, part.Bytes)
		}

		pad := int64(extents[role].numSectors)*SectorSize - part.Bytes
		if err := writeZeros(w, int(pad)); err != nil {
			return err
		}
	}

	if img.Align == AlignBochs {
		c := geo.cylinderSectors()
		padded := (totalSectors + c - 1) / c * c
		if err := writeZeros(w, (padded-totalSectors)*SectorSize); err != nil {
			return err
		}
	}

	return nil
}

// buildMBR assembles the 512-byte boot sector: loader, command line block,
// partition table, signature.
func buildMBR(loader []byte, args []string, extents map[Role]partExtent, geo Geometry) ([]byte, error) {
	mbr := make([]byte, 0, SectorSize)

	if loader != nil {
		mbr = append(mbr, loader...)
	} else {
		// int 0x18: "boot failure" BIOS service.
		stub := make([]byte, LoaderSize)
		stub[0] = 0xCD
		stub[1] = 0x18
		mbr = append(mbr, stub...)
	}

	cmdLine, err := buildCommandLine(args)
	if err != nil {
		return nil, err
	}
	mbr = append(mbr, cmdLine...)

	mbr = append(mbr, buildPartitionTable(extents, geo)...)
	mbr = binary.LittleEndian.AppendUint16(mbr, mbrSignature)

	if len(mbr) != SectorSize {
		return nil, fmt.Errorf("diskimg: MBR is %d bytes, expected %d", len(mbr), SectorSize)
	}
	return mbr, nil
}

// buildCommandLine encodes the kernel arguments as a little-endian argument
// count followed by the NUL-terminated argument strings, zero-padded to the
// fixed block size.
func buildCommandLine(args []string) ([]byte, error) {
	block := make([]byte, 4, cmdLineBlockSize)
	binary.LittleEndian.PutUint32(block, uint32(len(args)))

	for _, arg := range args {
		block = append(block, arg...)
		block = append(block, 0)
	}

	if len(block) > cmdLineBlockSize {
		return nil, fmt.Errorf("diskimg: command line exceeds %d bytes", maxCmdLineBytes)
	}
	return block[:cmdLineBlockSize], nil
}

// buildPartitionTable encodes one 16-byte entry per populated role, in role
// order, zero-padded to the fixed 64-byte table size. The kernel partition
// carries the bootable flag.
func buildPartitionTable(extents map[Role]partExtent, geo Geometry) []byte {
	table := make([]byte, 0, partitionTableSize)

	for _, role := range RoleOrder {
		ext, ok := extents[role]
		if !ok {
			continue
		}

		if role == RoleKernel {
			table = append(table, bootableFlag)
		} else {
			table = append(table, 0x00)
		}

		table = append(table, packCHS(ext.start, geo)...)
		table = append(table, role.partitionID())
		table = append(table, packCHS(ext.start+ext.numSectors-1, geo)...)

		table = binary.LittleEndian.AppendUint32(table, uint32(ext.start))
		table = binary.LittleEndian.AppendUint32(table, uint32(ext.numSectors))
	}

	return table[:partitionTableSize]
}

// packCHS packs a logical block address into the 3-byte cylinder/head/sector
// form used by partition table entries. Addresses past the CHS limit clamp
// to cylinder 1023, head 254, sector 63, matching the Pintos tooling.
func packCHS(lba int, geo Geometry) []byte {
	cyl := lba / geo.cylinderSectors()
	rem := lba % geo.cylinderSectors()
	head := rem / geo.SectorsPerTrack
	sect := rem%geo.SectorsPerTrack + 1

	if cyl > 1023 {
		cyl, head, sect = 1023, 254, 63
	}

	return []byte{
		byte(head),
		byte(sect) | byte(cyl>>2)&0xC0,
		byte(cyl),
	}
}

func writeZeros(w io.Writer, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := w.Write(make([]byte, n))
	return err
}
