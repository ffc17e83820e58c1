package analyzer

import (
	"image"

	"gocv.io/x/gocv"
)

// thresholdHSV returns the CV8U membership mask of img against the interval
func thresholdHSV(img gocv.Mat, hue HueInterval) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, hue.Lower(), hue.Upper(), &mask)
	return mask
}

// morph applies a square-kernel morphological operation and returns a new mask
func morph(mask gocv.Mat, op gocv.MorphType, size int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
	defer kernel.Close()

	out := gocv.NewMat()
	gocv.MorphologyEx(mask, &out, op, kernel)
	return out
}

// zeroMask allocates a blank CV8U mask of the given size
func zeroMask(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
}

// matBounds is the rectangle covered by a Mat in x/y coordinates
func matBounds(m gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, m.Cols(), m.Rows())
}
