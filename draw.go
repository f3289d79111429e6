package yolabel

// Rendering of annotated preview images for dataset QA.

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os"
	"path/filepath"

	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Renderer draws label records onto images.
type Renderer struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64

	BoxColor  color.RGBA // Box outline color.
	TextColor color.RGBA // Caption color.
	LineWidth int        // Box outline thickness in pixels.
}

// NewRenderer creates a renderer using the TrueType/OpenType font at
// fontPath for the captions.
func NewRenderer(fontPath string) (*Renderer, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read font file %q: %v", fontPath, err)
	}

	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("cannot parse font file %q: %v", fontPath, err)
	}

	r := &Renderer{
		font:      ttFont,
		BoxColor:  color.RGBA{G: 255, A: 255},
		TextColor: color.RGBA{G: 255, A: 255},
		LineWidth: 3,
	}
	if err := r.SetFontSize(14); err != nil {
		return nil, err
	}
	return r, nil
}

// SetFontSize adjusts the caption font size.
func (r *Renderer) SetFontSize(fontSize float64) error {
	if r.face != nil && r.fontSize == fontSize {
		return nil
	}

	if r.face != nil {
		r.face.Close()
	}

	nf, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return err
	}

	r.face = nf
	r.fontSize = fontSize
	return nil
}

// Close releases the font resources.
func (r *Renderer) Close() {
	if r.face != nil {
		r.face.Close()
	}
}

// Render returns a copy of img with all records drawn onto it: the box
// outline plus a caption with the class name and, when present, the
// detection confidence.
func (r *Renderer) Render(img image.Image, records []Record, names *ClassNames) image.Image {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, img.Bounds(), img, img.Bounds().Min, draw.Src)

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	for _, rec := range records {
		box := rec.Rect(w, h)
		r.drawBoxOutline(dst, box)

		caption := names.Name(rec.ClassID)
		if rec.Confidence > 0 {
			caption = fmt.Sprintf("%s %.2f", caption, rec.Confidence)
		}
		r.drawText(dst, caption, box.Min.X+r.LineWidth+1, box.Min.Y+int(r.fontSize)+2)
	}

	return dst
}

// drawBoxOutline draws the four edges of box.
func (r *Renderer) drawBoxOutline(dst *image.RGBA, box image.Rectangle) {
	corners := [4]image.Point{
		{X: box.Min.X, Y: box.Min.Y},
		{X: box.Max.X, Y: box.Min.Y},
		{X: box.Max.X, Y: box.Max.Y},
		{X: box.Min.X, Y: box.Max.Y},
	}
	for i := 0; i < 4; i++ {
		imageutil.DrawThickLine(dst, corners[i], corners[(i+1)%4], r.LineWidth, r.BoxColor)
	}
}

// drawText draws text with its baseline starting at (x, y).
func (r *Renderer) drawText(dst draw.Image, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.TextColor),
		Face: r.face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// RenderPreviews writes an annotated copy of every file's image to outDir,
// keeping the original file names. Images that cannot be read are logged
// and skipped.
func RenderPreviews(data Dataset, names *ClassNames, outDir, fontPath string,
		jpegQuality int) error {

	dirInfo, err := os.Stat(outDir)
	if err != nil || !dirInfo.IsDir() {
		return fmt.Errorf("cannot access directory %q: %v", outDir, err)
	}

	renderer, err := NewRenderer(fontPath)
	if err != nil {
		return err
	}
	defer renderer.Close()

	for _, fileData := range data {
		img, _, err := loadImage(fileData.Image)
		if err != nil {
			log.Printf("Cannot load image, skipping %q: %v", fileData.Image, err)
			continue
		}

		out := renderer.Render(img, fileData.Records, names)
		outPath := filepath.Join(outDir, filepath.Base(fileData.Image))
		if err := saveImage(outPath, out, jpegQuality); err != nil {
			return err
		}
	}

	return nil
}
