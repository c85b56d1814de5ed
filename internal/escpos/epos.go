package escpos

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// imageState accumulates the in-progress <image> element during a parse. It
// is reset whenever a new image element opens.
type imageState struct {
	width    int
	height   int
	align    Align
	gap      int
	scale    byte
	invert   bool
	bitOrder BitOrder
	b64      strings.Builder
}

func (st *imageState) reset() {
	st.width = 0
	st.height = 0
	st.align = AlignLeft
	st.gap = 0
	st.scale = 0
	st.invert = false
	st.bitOrder = MSBFirst
	st.b64.Reset()
}

func parseAlign(val string) Align {
	switch {
	case strings.EqualFold(val, "center"):
		return AlignCenter
	case strings.EqualFold(val, "right"):
		return AlignRight
	default:
		return AlignLeft
	}
}

func parseScale(val string) byte {
	switch strings.ToLower(val) {
	case "2w":
		return 1
	case "2h":
		return 2
	case "2x", "2":
		return 3
	default:
		return 0
	}
}

// ParseBool recognizes the truthy tokens accepted by ePOS attributes and the
// override query parameters / headers.
func ParseBool(val string) bool {
	switch strings.ToLower(val) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// ParseBitOrder maps an attribute or override value to a BitOrder.
func ParseBitOrder(val string) BitOrder {
	if strings.EqualFold(val, "lsb") || strings.EqualFold(val, "lsb_first") {
		return LSBFirst
	}
	return MSBFirst
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParseDocument extracts a print document from an ePOS-Print SOAP payload in
// a single forward pass over the XML event stream. Element names are matched
// by suffix on the local name, so namespace prefixes are irrelevant. The
// caller-supplied overrides, when non-nil, win over the per-image invert and
// bit_order attributes.
func ParseDocument(body []byte, invertOverride *bool, bitOrderOverride *BitOrder) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		images     []ImageSpec
		cut        *string
		collecting bool
		st         imageState
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if strings.HasSuffix(name, "image") {
				collecting = true
				st.reset()
				for _, a := range t.Attr {
					val := a.Value
					switch strings.ToLower(a.Name.Local) {
					case "width":
						st.width, _ = strconv.Atoi(val)
					case "height":
						st.height, _ = strconv.Atoi(val)
					case "align":
						st.align = parseAlign(val)
					case "gap":
						st.gap, _ = strconv.Atoi(val)
						if st.gap < 0 || st.gap > 255 {
							st.gap = 0
						}
					case "scale":
						st.scale = parseScale(val)
					case "invert":
						st.invert = ParseBool(val)
					case "bit_order":
						st.bitOrder = ParseBitOrder(val)
					}
				}
			} else if strings.HasSuffix(name, "cut") {
				for _, a := range t.Attr {
					if strings.EqualFold(a.Name.Local, "type") {
						v := a.Value
						cut = &v
					}
				}
			}

		case xml.CharData:
			if collecting {
				st.b64.Write(t)
			}

		case xml.EndElement:
			if !strings.HasSuffix(strings.ToLower(t.Name.Local), "image") {
				continue
			}
			collecting = false

			if st.width <= 0 || st.height <= 0 || st.b64.Len() == 0 {
				return nil, errors.New("incomplete <image> element (width/height/base64)")
			}

			cleaned := stripWhitespace(st.b64.String())
			bitmap, err := base64.StdEncoding.DecodeString(cleaned)
			if err != nil {
				return nil, fmt.Errorf("invalid <image> base64: %w", err)
			}

			// Tolerate minor encoder rounding: pad or truncate to the exact
			// packed size instead of rejecting.
			expected := ((st.width + 7) / 8) * st.height
			if len(bitmap) < expected {
				bitmap = append(bitmap, make([]byte, expected-len(bitmap))...)
			} else if len(bitmap) > expected {
				bitmap = bitmap[:expected]
			}

			invert := st.invert
			if invertOverride != nil {
				invert = *invertOverride
			}
			order := st.bitOrder
			if bitOrderOverride != nil {
				order = *bitOrderOverride
			}

			images = append(images, ImageSpec{
				Width:    st.width,
				Height:   st.height,
				Align:    st.align,
				GapLines: st.gap,
				Scale:    st.scale,
				Invert:   invert,
				BitOrder: order,
				Bitmap:   transformBitmap(bitmap, invert, order),
			})
		}
	}

	if len(images) == 0 {
		return nil, errors.New("ePOS payload contains no <image>")
	}

	return &Document{Images: images, Cut: cut}, nil
}
