// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Square images with a transparent background work best.
const backgroundSize = 512

// LoadImage decodes a PNG, JPEG or WebP file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// DefaultBackground returns a plain caravan outline for axis, used when no
// image file is configured.
func DefaultBackground(axis Axis) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, backgroundSize, backgroundSize))
	body := image.NewUniform(color.RGBA{R: 0x60, G: 0x60, B: 0x68, A: 0xff})
	window := image.NewUniform(color.RGBA{R: 0xb0, G: 0xd0, B: 0xe8, A: 0xff})
	tyre := image.NewUniform(color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff})

	fill := func(r image.Rectangle, src image.Image) {
		draw.Draw(img, r, src, image.Point{}, draw.Src)
	}

	switch axis {
	case AxisRoll:
		// rear view: box body, window, two wheels
		fill(image.Rect(96, 160, 416, 368), body)
		fill(image.Rect(176, 192, 336, 256), window)
		fill(image.Rect(112, 368, 176, 416), tyre)
		fill(image.Rect(336, 368, 400, 416), tyre)
	default:
		// side view: body, windows, axle wheel, drawbar and jockey wheel
		fill(image.Rect(112, 176, 432, 352), body)
		fill(image.Rect(144, 208, 224, 256), window)
		fill(image.Rect(320, 208, 400, 256), window)
		fill(image.Rect(264, 352, 328, 408), tyre)
		fill(image.Rect(40, 320, 112, 332), body)
		fill(image.Rect(56, 332, 72, 392), body)
		fill(image.Rect(48, 392, 80, 416), tyre)
	}
	return img
}
