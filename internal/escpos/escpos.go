// Package escpos translates parsed print documents and JSON job descriptions
// into the ESC/POS binary command stream consumed by thermal printers.
package escpos

import (
	"bytes"
	"fmt"
	"strings"
)

// ESC/POS command prefixes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
)

// Align selects the horizontal alignment for subsequent output.
type Align byte

const (
	AlignLeft   Align = 0
	AlignCenter Align = 1
	AlignRight  Align = 2
)

// BitOrder describes how pixels are packed within a bitmap byte.
type BitOrder int

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// ImageSpec is one raster image within a document. The bitmap is packed
// 1-bit-per-pixel, row-major, with rows padded to whole bytes.
type ImageSpec struct {
	Width    int
	Height   int
	Align    Align
	GapLines int
	Scale    byte // 0: 1x, 1: 2w, 2: 2h, 3: 2x
	Invert   bool
	BitOrder BitOrder
	Bitmap   []byte
}

// Document is a parsed ePOS-Print job: images in print order plus an optional
// cut directive. Cut is nil when the payload carried no cut element.
type Document struct {
	Images []ImageSpec
	Cut    *string
}

func escInit(buf *bytes.Buffer) {
	buf.Write([]byte{ESC, '@'})
}

func escAlign(buf *bytes.Buffer, a Align) {
	buf.Write([]byte{ESC, 'a', byte(a)})
}

func escTextLine(buf *bytes.Buffer, s string, newline bool) {
	buf.WriteString(s)
	if newline {
		buf.WriteByte('\n')
	}
}

func escFeed(buf *bytes.Buffer, lines byte) {
	buf.Write([]byte{ESC, 'd', lines})
}

func escCut(buf *bytes.Buffer, partial bool) {
	m := byte(0x00)
	if partial {
		m = 0x01
	}
	buf.Write([]byte{GS, 'V', m})
}

// escRasterImage emits GS v 0 m xL xH yL yH followed by the packed bitmap.
func escRasterImage(buf *bytes.Buffer, width, height int, data []byte, scale byte) error {
	xBytes := (width + 7) / 8
	expected := xBytes * height
	if len(data) != expected {
		return fmt.Errorf("image data size mismatch (got %d, expected %d by bytes/row %d)",
			len(data), expected, xBytes)
	}

	buf.Write([]byte{
		GS, 'v', '0', scale,
		byte(xBytes & 0xFF), byte((xBytes >> 8) & 0xFF),
		byte(height & 0xFF), byte((height >> 8) & 0xFF),
	})
	buf.Write(data)
	return nil
}

// EncodeDocument builds the ESC/POS byte stream for a parsed ePOS document:
// initialize, then each image with its alignment and trailing feed, then the
// cut policy. When the document carries no cut directive the printer still
// feeds and cuts, matching vendor firmware behavior.
func EncodeDocument(doc *Document) ([]byte, error) {
	totalBitmap := 0
	for _, img := range doc.Images {
		totalBitmap += len(img.Bitmap)
	}
	buf := bytes.NewBuffer(make([]byte, 0, 64+totalBitmap+len(doc.Images)*16))

	escInit(buf)

	for _, img := range doc.Images {
		escAlign(buf, img.Align)
		if err := escRasterImage(buf, img.Width, img.Height, img.Bitmap, img.Scale); err != nil {
			return nil, err
		}
		if img.GapLines > 0 {
			escFeed(buf, byte(img.GapLines))
		}
	}

	escAlign(buf, AlignLeft)

	switch {
	case doc.Cut == nil:
		escFeed(buf, 3)
		escCut(buf, false)
	case strings.EqualFold(*doc.Cut, "feed"):
		escFeed(buf, 3)
		escCut(buf, false)
	case strings.EqualFold(*doc.Cut, "partial"):
		escCut(buf, true)
	default:
		escCut(buf, false)
	}

	return buf.Bytes(), nil
}

// PrintOp is one instruction in a JSON job, tagged by Type.
type PrintOp struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Newline *bool  `json:"newline,omitempty"`
	Lines   int    `json:"lines,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// Job is a JSON print job: either a base64-encoded raw ESC/POS payload or an
// ordered operation list.
type Job struct {
	Base64 string    `json:"base64,omitempty"`
	Ops    []PrintOp `json:"ops,omitempty"`
}

// EncodeOps builds the ESC/POS byte stream for an operation list.
func EncodeOps(ops []PrintOp) ([]byte, error) {
	size := 0
	for _, op := range ops {
		size += len(op.Data) + 3
	}
	if size < 256 {
		size = 256
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))

	for _, op := range ops {
		switch op.Type {
		case "init":
			escInit(buf)
		case "text":
			newline := op.Newline == nil || *op.Newline
			escTextLine(buf, op.Data, newline)
		case "feed":
			if op.Lines < 0 || op.Lines > 255 {
				return nil, fmt.Errorf("feed lines out of range: %d", op.Lines)
			}
			escFeed(buf, byte(op.Lines))
		case "cut":
			partial := strings.EqualFold(op.Mode, "partial") || strings.EqualFold(op.Mode, "p")
			escCut(buf, partial)
		default:
			return nil, fmt.Errorf("unknown print op type: %q", op.Type)
		}
	}

	return buf.Bytes(), nil
}
