// pe.go decodes the debug directory of a PE image loaded in memory.
//
// Layout references (offsets relative to the image base, since a loaded image
// is laid out by relative virtual address):
//
//	0x3C                         dword  offset of the "PE\0\0" signature
//	sig+4                        COFF file header (20 bytes)
//	  +16                        word   SizeOfOptionalHeader
//	sig+24                       optional header
//	  +0                         word   magic (0x10B PE32, 0x20B PE32+)
//	  +144 / +160                debug data directory {rva dword, size dword}
//	debug directory entry        28 bytes
//	  +12                        dword  type (2 = CodeView)
//	  +16                        dword  SizeOfData
//	  +20                        dword  AddressOfRawData
//	CodeView record
//	  +0                         dword  "RSDS"
//	  +4                         16-byte GUID
//	  +20                        dword  age
//	  +24                        zero terminated UTF-8 pdb path

package raygun

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	signatureOffsetOffset      = 0x3c
	signatureSize              = 4
	coffFileHeaderSize         = 20
	sizeOfOptionalHeaderField  = 16
	debugDataDirectoryOffset32 = 144
	debugDataDirectoryOffset64 = 160
	debugDirectorySize         = 28
	debugTypeCodeView          = 2
	rsdsSignature              = 0x53445352
	codeViewHeaderSize         = 24

	peMagic32 = 0x10b
	peMagic64 = 0x20b
)

// ErrImageOutOfBounds is returned when a read falls outside the image bytes.
var ErrImageOutOfBounds = errors.New("read outside image bounds")

// imageReader performs bounds-checked little-endian reads relative to a base
// offset within a memory snapshot.
type imageReader struct {
	mem  []byte
	base int
}

func (r imageReader) slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 {
		return nil, errors.Wrapf(ErrImageOutOfBounds, "offset %d length %d", off, n)
	}
	start := r.base + off
	end := start + n
	if start < r.base || end < start || end > len(r.mem) {
		return nil, errors.Wrapf(ErrImageOutOfBounds, "offset %d length %d", off, n)
	}
	return r.mem[start:end], nil
}

func (r imageReader) uint16(off int) (uint16, error) {
	b, err := r.slice(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r imageReader) uint32(off int) (uint32, error) {
	b, err := r.slice(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// DecodeDebugDirectory reads the CodeView debug records of the image that
// starts at offset base within mem. It returns nil and no error when the image
// has no debug directory or no CodeView record.
func DecodeDebugDirectory(mem []byte, base int) ([]ImageDebugInfo, error) {
	if base < 0 || base > len(mem) {
		return nil, errors.Wrapf(ErrImageOutOfBounds, "base %d", base)
	}
	r := imageReader{mem: mem, base: base}

	sigOffset, err := r.uint32(signatureOffsetOffset)
	if err != nil {
		return nil, errors.Wrap(err, "read signature offset")
	}
	coffOffset := int(sigOffset) + signatureSize
	sizeOfOptionalHeader, err := r.uint16(coffOffset + sizeOfOptionalHeaderField)
	if err != nil {
		return nil, errors.Wrap(err, "read optional header size")
	}
	optionalHeaderOffset := coffOffset + coffFileHeaderSize
	magic, err := r.uint16(optionalHeaderOffset)
	if err != nil {
		return nil, errors.Wrap(err, "read optional header magic")
	}

	var dirOffset int
	switch magic {
	case peMagic32:
		dirOffset = optionalHeaderOffset + debugDataDirectoryOffset32
	case peMagic64:
		dirOffset = optionalHeaderOffset + debugDataDirectoryOffset64
	default:
		return nil, errors.Errorf("unknown optional header magic %#x", magic)
	}
	if dirOffset >= optionalHeaderOffset+int(sizeOfOptionalHeader) {
		return nil, nil
	}

	debugRVA, err := r.uint32(dirOffset)
	if err != nil {
		return nil, errors.Wrap(err, "read debug directory address")
	}
	if debugRVA == 0 {
		return nil, nil
	}
	debugSize, err := r.uint32(dirOffset + 4)
	if err != nil {
		return nil, errors.Wrap(err, "read debug directory size")
	}

	var infos []ImageDebugInfo
	count := int(debugSize) / debugDirectorySize
	for i := 0; i < count; i++ {
		entry := int(debugRVA) + i*debugDirectorySize
		typ, err := r.uint32(entry + 12)
		if err != nil {
			return infos, errors.Wrapf(err, "read debug directory entry %d", i)
		}
		if typ != debugTypeCodeView {
			continue
		}
		sizeOfData, err := r.uint32(entry + 16)
		if err != nil {
			return infos, errors.Wrapf(err, "read debug directory entry %d", i)
		}
		addressOfRawData, err := r.uint32(entry + 20)
		if err != nil {
			return infos, errors.Wrapf(err, "read debug directory entry %d", i)
		}
		info, ok, err := decodeCodeView(r, int(addressOfRawData), int(sizeOfData))
		if err != nil {
			return infos, errors.Wrapf(err, "read codeview record %d", i)
		}
		if ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// decodeCodeView reads an RSDS record. ok is false for other record formats.
func decodeCodeView(r imageReader, addr, size int) (ImageDebugInfo, bool, error) {
	sig, err := r.uint32(addr)
	if err != nil {
		return ImageDebugInfo{}, false, err
	}
	if sig != rsdsSignature {
		return ImageDebugInfo{}, false, nil
	}
	guidBytes, err := r.slice(addr+4, 16)
	if err != nil {
		return ImageDebugInfo{}, false, err
	}

	// Drop the zero terminator.
	nameSize := size - codeViewHeaderSize - 1
	if nameSize <= 0 {
		return ImageDebugInfo{}, false, nil
	}
	name, err := r.slice(addr+codeViewHeaderSize, nameSize)
	if err != nil {
		return ImageDebugInfo{}, false, err
	}
	return ImageDebugInfo{
		PdbFileName: strings.TrimRight(string(name), "\x00"),
		GUID:        formatGUID(guidBytes),
	}, true, nil
}

// formatGUID renders a GUID stored in its in-memory layout, where the first
// three groups are little-endian.
func formatGUID(b []byte) string {
	var u uuid.UUID
	copy(u[:], b)
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	return u.String()
}
