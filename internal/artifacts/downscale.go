package artifacts

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// maxScreenshotSide bounds the longest edge a stored screenshot artifact
// keeps. Anything wider is downscaled before it reaches the store, the same
// budget the teacher's media processor enforces on outbound screenshots,
// just expressed as a pixel cap instead of a byte cap since these stay PNG.
const maxScreenshotSide = 2560

// downscaleScreenshot shrinks a PNG-encoded screenshot whose longest edge
// exceeds maxScreenshotSide, preserving aspect ratio. Images already within
// bounds, or that fail to decode as an image (not a screenshot after all),
// are returned unchanged.
func downscaleScreenshot(data []byte) []byte {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := width
	if height > longest {
		longest = height
	}
	if longest <= maxScreenshotSide {
		return data
	}

	scale := float64(maxScreenshotSide) / float64(longest)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return data
	}
	return buf.Bytes()
}
