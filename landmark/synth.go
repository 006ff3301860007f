package landmark

import "time"

// Synthetic eye geometry in normalized image coordinates.
const (
	synthEyeWidth = 0.06
	synthEyeY     = 0.45
	synthRightX   = 0.40
	synthLeftX    = 0.60
)

// SyntheticFace builds a frame whose eyes have the given aspect ratio and
// whose irises sit at gaze (gx, gy) inside the eye bounding box, both axes in
// [-1, 1]. It is the inverse of the eye-state estimate and drives replay
// tests and the synth command.
func SyntheticFace(at time.Time, ear, gx, gy float64) Frame {
	pts := make([]Point, NumLandmarks)
	placeEye(pts, RightEye, RightIris, RightIrisCenter, synthRightX, ear, gx, gy)
	placeEye(pts, LeftEye, LeftIris, LeftIrisCenter, synthLeftX, ear, gx, gy)
	return Frame{At: at, Points: pts}
}

func placeEye(pts []Point, eye [6]int, iris [4]int, center int, cx, ear, gx, gy float64) {
	w := synthEyeWidth
	half := ear * w / 2
	cy := synthEyeY

	pts[eye[0]] = Point{X: cx - w/2, Y: cy}
	pts[eye[3]] = Point{X: cx + w/2, Y: cy}
	pts[eye[1]] = Point{X: cx - w/6, Y: cy - half}
	pts[eye[2]] = Point{X: cx + w/6, Y: cy - half}
	pts[eye[5]] = Point{X: cx - w/6, Y: cy + half}
	pts[eye[4]] = Point{X: cx + w/6, Y: cy + half}

	ix := cx + gx*w/2
	iy := cy + gy*half
	r := w / 10
	pts[center] = Point{X: ix, Y: iy}
	pts[iris[0]] = Point{X: ix + r, Y: iy}
	pts[iris[1]] = Point{X: ix, Y: iy - r}
	pts[iris[2]] = Point{X: ix - r, Y: iy}
	pts[iris[3]] = Point{X: ix, Y: iy + r}
}
