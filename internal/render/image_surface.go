// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

var (
	regularOnce sync.Once
	regularFont *sfnt.Font
	regularErr  error
)

func goRegular() (*sfnt.Font, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = opentype.Parse(goregular.TTF)
	})
	return regularFont, regularErr
}

// ImageSurface is a Surface backed by an RGBA image.
type ImageSurface struct {
	img  *image.RGBA
	face font.Face
}

// NewImageSurface returns a size x size surface with a font scaled to a
// sixteenth of the width.
func NewImageSurface(size int) (*ImageSurface, error) {
	if size <= 0 {
		return nil, fmt.Errorf("surface size must be positive, got %d", size)
	}
	f, err := goRegular()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size) / 16,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	return &ImageSurface{
		img:  image.NewRGBA(image.Rect(0, 0, size, size)),
		face: face,
	}, nil
}

func (s *ImageSurface) Bounds() image.Rectangle { return s.img.Bounds() }

func (s *ImageSurface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (s *ImageSurface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func (s *ImageSurface) DrawText(text string, x, y float64, c color.Color) {
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(c),
		Face: s.face,
	}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: toFixed(x) - width/2,
		Y: toFixed(y),
	}
	d.DrawString(text)
}

func (s *ImageSurface) DrawRotatedImage(img image.Image, cx, cy, angleRad float64) {
	sb := img.Bounds()
	if sb.Empty() {
		return
	}
	db := s.img.Bounds()
	w, h := float64(db.Dx()), float64(db.Dy())
	kx, ky := w/float64(sb.Dx()), h/float64(sb.Dy())
	sin, cos := math.Sincos(angleRad)

	// source -> scaled and centred on the origin -> rotated -> moved to (cx, cy)
	a, b := cos*kx, -sin*ky
	d, e := sin*kx, cos*ky
	c := cx - cos*w/2 + sin*h/2
	f := cy - sin*w/2 - cos*h/2
	c -= a*float64(sb.Min.X) + b*float64(sb.Min.Y)
	f -= d*float64(sb.Min.X) + e*float64(sb.Min.Y)

	draw.BiLinear.Transform(s.img, f64.Aff3{a, b, c, d, e, f}, img, sb, draw.Over, nil)
}

// Image returns the backing image. It is reused by the next draw.
func (s *ImageSurface) Image() *image.RGBA { return s.img }

// PNG encodes the current frame.
func (s *ImageSurface) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
