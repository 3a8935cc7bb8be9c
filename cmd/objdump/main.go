// Command objdump prints the table-of-contents of a packed object
// file without linking in any application's registered classes.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	"github.com/BareMetalEngine/bm-core-sub001/internal/sreader"
)

var (
	locateCRC = flag.String("locate-buffer-crc", "", "hex CRC64 of a buffer to locate instead of dumping the whole table of contents")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: objdump [-locate-buffer-crc=HEX] <path>")
		os.Exit(2)
	}
	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "objdump:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("reading %s: %w", path, err)
	}

	c := newColorizer(os.Stdout)

	if *locateCRC != "" {
		var crc uint64
		if _, err := fmt.Sscanf(*locateCRC, "%x", &crc); err != nil {
			return xerrors.Errorf("parsing -locate-buffer-crc: %w", err)
		}
		placement, err := sreader.LocateBufferPlacement(data, crc)
		if err != nil {
			return err
		}
		if placement.Extracted {
			fmt.Printf("buffer %016x: extracted out of band, %d bytes compressed, %d bytes uncompressed\n",
				crc, placement.CompressedSize, placement.UncompressedSize)
		} else {
			fmt.Printf("buffer %016x: offset %d, %d bytes compressed, %d bytes uncompressed, compression %d\n",
				crc, placement.Offset, placement.CompressedSize, placement.UncompressedSize, placement.CompressionType)
		}
		return nil
	}

	summary, err := sreader.Summarize(data)
	if err != nil {
		return err
	}

	c.section("header")
	fmt.Printf("  flags:       %#x\n", summary.Flags)
	fmt.Printf("  headersEnd:  %d\n", summary.HeadersEnd)
	fmt.Printf("  objectsEnd:  %d\n", summary.ObjectsEnd)
	fmt.Printf("  buffersEnd:  %d\n", summary.BuffersEnd)

	c.section(fmt.Sprintf("exports (%d)", len(summary.Exports)))
	for i, e := range summary.Exports {
		marker := ""
		if e.Root {
			marker = c.bold(" [root]")
		}
		fmt.Printf("  %4d  %-32s %8d bytes%s\n", i, e.ClassName, e.DataSize, marker)
	}

	c.section(fmt.Sprintf("buffers (%d)", len(summary.Buffers)))
	for i, b := range summary.Buffers {
		fmt.Printf("  %4d  crc=%016x  compressed=%-10d uncompressed=%-10d type=%d\n",
			i, b.CRC64, b.CompressedSize, b.UncompressedSize, b.CompressionType)
	}

	c.section(fmt.Sprintf("imports (%d)", len(summary.Imports)))
	for i, imp := range summary.Imports {
		fmt.Printf("  %4d  %-32s %s\n", i, imp.ClassName, imp.ID)
	}

	return nil
}

// colorizer prints section headers in bold when stdout is a terminal,
// and plainly otherwise — the same isatty.IsTerminal check distri's
// own build log output would use to decide whether to emit ANSI
// codes.
type colorizer struct{ enabled bool }

func newColorizer(f *os.File) *colorizer {
	return &colorizer{enabled: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
}

func (c *colorizer) bold(s string) string {
	if !c.enabled {
		return " " + s
	}
	return "\x1b[1m " + s + "\x1b[0m"
}

func (c *colorizer) section(title string) {
	if c.enabled {
		fmt.Printf("\x1b[1m%s:\x1b[0m\n", title)
	} else {
		fmt.Printf("%s:\n", title)
	}
}
