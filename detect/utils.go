package detect

import (
	"image"
	"sort"

	ort "github.com/getcharzp/onnxruntime_purego"
	"github.com/up-zero/gotool/imageutil"
)

// preprocess scales img to fit the square model input and fills a CHW
// float32 tensor with the pixel data normalized to [0, 1].
func preprocess(img image.Image, inputSize int) (*ort.Value, imageParams, error) {
	bounds := img.Bounds()
	params := imageParams{
		origW: bounds.Dx(),
		origH: bounds.Dy(),
	}

	longer := params.origW
	if params.origH > longer {
		longer = params.origH
	}
	scale := float32(inputSize) / float32(longer)
	params.scale = scale

	newW := int(float32(params.origW) * scale)
	newH := int(float32(params.origH) * scale)

	resized := imageutil.Resize(img, newW, newH)

	data := make([]float32, 3*inputSize*inputSize)
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()

			idx := y*inputSize + x
			data[idx] = float32(r) / 65535.0                       // R
			data[inputSize*inputSize+idx] = float32(g) / 65535.0   // G
			data[2*inputSize*inputSize+idx] = float32(b) / 65535.0 // B
		}
	}

	tensor, err := ort.NewTensor([]int64{1, 3, int64(inputSize), int64(inputSize)}, data)
	return tensor, params, err
}

// scaleBoxToOriginal maps a box from input-tensor space back to the source
// image, clipped to the image bounds.
func scaleBoxToOriginal(x1, y1, x2, y2 float32, params imageParams) image.Rectangle {
	origX1 := clampInt(int(x1/params.scale), 0, params.origW)
	origY1 := clampInt(int(y1/params.scale), 0, params.origH)
	origX2 := clampInt(int(x2/params.scale), 0, params.origW)
	origY2 := clampInt(int(y2/params.scale), 0, params.origH)
	return image.Rect(origX1, origY1, origX2, origY2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// nms applies non-maximum suppression and returns the indices of the kept
// candidates, ordered by descending score.
func nms(cands []candidate, iouThresh float32) []int {
	sort.Slice(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	keep := make([]int, 0)
	suppressed := make([]bool, len(cands))

	for i := 0; i < len(cands); i++ {
		if suppressed[i] {
			continue
		}
		keep = append(keep, i)

		for j := i + 1; j < len(cands); j++ {
			if suppressed[j] {
				continue
			}
			if computeIOU(cands[i].origBox, cands[j].origBox) > iouThresh {
				suppressed[j] = true
			}
		}
	}
	return keep
}

// computeIOU is the intersection-over-union of two rectangles.
func computeIOU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}

	interArea := intersect.Dx() * intersect.Dy()
	area1 := r1.Dx() * r1.Dy()
	area2 := r2.Dx() * r2.Dy()

	return float32(interArea) / float32(area1+area2-interArea)
}
