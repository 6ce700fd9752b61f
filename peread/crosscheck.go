package peread

import (
	"fmt"
	"io"

	gope "github.com/Velocidex/go-pe"
)

// CrossCheck re-reads the NT headers of r through go-pe's lenient profile
// and lists every place where it disagrees with the strict decode in hdr.
// An empty result means both readers see the same layout.
func CrossCheck(r io.ReaderAt, hdr *ImageHeader) (issues []string) {
	defer func() {
		// go-pe reads lazily and trusts the file; a hostile image may
		// trip it even though the strict decode succeeded.
		if p := recover(); p != nil {
			issues = append(issues, fmt.Sprintf("go-pe failed to read headers: %v", p))
		}
	}()

	profile := gope.NewPeProfile()
	dos := profile.IMAGE_DOS_HEADER(r, 0)
	if uint32(dos.E_lfanew()) != hdr.PEOffset {
		issues = append(issues, fmt.Sprintf("PE header offset: go-pe 0x%X, strict 0x%X", dos.E_lfanew(), hdr.PEOffset))
		return issues
	}
	nt := dos.NTHeader()

	pe64 := nt.OptionalHeader().Magic() == magicPE32Plus
	if pe64 != hdr.Optional.PE64 {
		issues = append(issues, fmt.Sprintf("bitness: go-pe pe64=%v, strict pe64=%v", pe64, hdr.Optional.PE64))
	}

	clr := nt.DataDirectory(DirCLRRuntimeHeader)
	if rva := clr.VirtualAddress(); rva != hdr.Optional.CLRRuntimeHeader().RVA {
		issues = append(issues, fmt.Sprintf("CLR header RVA: go-pe 0x%X, strict 0x%X", rva, hdr.Optional.CLRRuntimeHeader().RVA))
	}

	sections := nt.Sections()
	if len(sections) != len(hdr.Sections) {
		issues = append(issues, fmt.Sprintf("section count: go-pe %d, strict %d", len(sections), len(hdr.Sections)))
		return issues
	}
	for i, s := range sections {
		want := hdr.Sections[i]
		if s.Name() != want.Name {
			issues = append(issues, fmt.Sprintf("section %d name: go-pe %q, strict %q", i, s.Name(), want.Name))
		}
		if s.VirtualAddress() != want.VirtualAddress {
			issues = append(issues, fmt.Sprintf("section %s virtual address: go-pe 0x%X, strict 0x%X", want.Name, s.VirtualAddress(), want.VirtualAddress))
		}
		if s.PointerToRawData() != want.PointerToRawData {
			issues = append(issues, fmt.Sprintf("section %s raw pointer: go-pe 0x%X, strict 0x%X", want.Name, s.PointerToRawData(), want.PointerToRawData))
		}
		if s.SizeOfRawData() != want.SizeOfRawData {
			issues = append(issues, fmt.Sprintf("section %s raw size: go-pe 0x%X, strict 0x%X", want.Name, s.SizeOfRawData(), want.SizeOfRawData))
		}
	}

	// go-pe maps RVAs over raw extents rather than virtual ones; the CLR
	// header must land on the same file offset either way.
	if rva := hdr.Optional.CLRRuntimeHeader().RVA; rva != 0 {
		strict, ok := OffsetFrom(hdr.Sections, rva)
		lenient := gope.NewRVAResolver(nt).GetFileAddress(rva)
		if ok && lenient != strict {
			issues = append(issues, fmt.Sprintf("CLR header file offset: go-pe 0x%X, strict 0x%X", lenient, strict))
		}
	}

	log.WithField("issues", len(issues)).Debug("Cross-checked headers with go-pe")
	return issues
}
