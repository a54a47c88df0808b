package dataset

import (
	"fmt"
	"image"
	"io"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/agrishield/agrishield-ai/tensor"
)

// ImageSize is the height and width every image is resized to.
const ImageSize = 224

// DecodeImage decodes a JPEG or PNG stream and resizes it to
// ImageSize×ImageSize, returning a [H, W, 3] tensor of [0,255] pixels.
func DecodeImage(r io.Reader) (*tensor.Tensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	resized := resize.Resize(ImageSize, ImageSize, img, resize.Bilinear)

	t := tensor.New(ImageSize, ImageSize, 3)
	i := 0
	for y := 0; y < ImageSize; y++ {
		for x := 0; x < ImageSize; x++ {
			r16, g16, b16, _ := resized.At(x, y).RGBA()
			t.Data[i] = float64(r16 >> 8)
			t.Data[i+1] = float64(g16 >> 8)
			t.Data[i+2] = float64(b16 >> 8)
			i += 3
		}
	}
	return t, nil
}

func decodeImageFile(path string) (*tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeImage(f)
}
