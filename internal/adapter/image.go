package adapter

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/format"
)

// imageParser produces a single Image block. JPEG bytes are embedded as
// they are. PNG and BMP are decoded and written back as 8-bit
// non-interlaced PNG, the only PNG flavour the PDF writer embeds.
func imageParser(kind format.Kind) Parser {
	return ParserFunc(func(data []byte) (*document.Document, error) {
		var (
			img document.Image
			err error
		)
		switch kind {
		case format.ImageJpg:
			img, err = jpegImage(data)
		case format.ImagePng:
			img, err = reencodePNG(data, func(b []byte) (image.Image, error) {
				return png.Decode(bytes.NewReader(b))
			})
		case format.ImageBmp:
			img, err = reencodePNG(data, func(b []byte) (image.Image, error) {
				return bmp.Decode(bytes.NewReader(b))
			})
		default:
			return nil, fmt.Errorf("%s is not an image kind", kind)
		}
		if err != nil {
			return nil, &ParseError{Format: kind, Offset: -1, Err: err}
		}
		if img.Width <= 0 || img.Height <= 0 {
			return nil, &ParseError{Format: kind, Offset: -1, Err: fmt.Errorf("invalid dimensions %dx%d", img.Width, img.Height)}
		}
		return &document.Document{Blocks: []document.Block{img}}, nil
	})
}

func jpegImage(data []byte) (document.Image, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return document.Image{}, err
	}
	if name != "jpeg" {
		return document.Image{}, fmt.Errorf("content is %s, not jpeg", name)
	}
	return document.Image{Data: data, Format: "jpg", Width: cfg.Width, Height: cfg.Height}, nil
}

func reencodePNG(data []byte, decode func([]byte) (image.Image, error)) (document.Image, error) {
	src, err := decode(data)
	if err != nil {
		return document.Image{}, err
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, dst); err != nil {
		return document.Image{}, err
	}
	return document.Image{Data: buf.Bytes(), Format: "png", Width: b.Dx(), Height: b.Dy()}, nil
}
