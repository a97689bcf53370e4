// Package template turns a picture into the character class layout the
// final text is poured into: lit pixels become radix-10 positions, dark
// ones radix-13, and every row ends in a DOS line break.
package template

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"smile/fault"
)

const (
	Dot  = '.'
	Star = '*'
)

// FromImage renders img row by row. A pixel is a Star when its red
// channel is non-zero.
func FromImage(img image.Image) []byte {
	b := img.Bounds()
	var buf bytes.Buffer
	buf.Grow((b.Dx() + 2) * b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.R != 0 {
				buf.WriteByte(Star)
			} else {
				buf.WriteByte(Dot)
			}
		}
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// Decode reads a PNG (or GIF/JPEG) image and returns its template.
func Decode(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

// Convert reads the image at path.
func Convert(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Sprintf("open %q", path), err)
	}
	defer f.Close()
	t, err := Decode(f)
	if err != nil {
		return nil, fault.Wrap(fault.IO, path, err)
	}
	return t, nil
}

// Load reads a template text file.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Sprintf("load template %q", path), err)
	}
	return data, nil
}

type Stats struct {
	Rows  int
	Dots  int
	Stars int
	Other int
}

// Count tallies the position classes of a template.
func Count(t []byte) Stats {
	var s Stats
	for _, c := range t {
		switch c {
		case Dot:
			s.Dots++
		case Star:
			s.Stars++
		case '\n':
			s.Rows++
			s.Other++
		default:
			s.Other++
		}
	}
	return s
}
