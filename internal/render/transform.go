package render

import "github.com/BurntSushi/xgb/render"

// XRender transforms use 16.16 fixed point.
const fixedShift = 16

// ToFixed converts a float to XRender fixed point.
func ToFixed(d float64) render.Fixed {
	return render.Fixed(d * float64(int32(1)<<fixedShift))
}

// ScaleTransform builds the affine transform mapping destination pixels
// back to source pixels: sx and sy are src_size / dst_size per axis, so a
// shrink uses factors greater than one.
func ScaleTransform(sx, sy float64) render.Transform {
	return render.Transform{
		Matrix11: ToFixed(sx),
		Matrix22: ToFixed(sy),
		Matrix33: ToFixed(1.0),
	}
}

// IdentityTransform is the 1:1 transform.
func IdentityTransform() render.Transform {
	return ScaleTransform(1.0, 1.0)
}
