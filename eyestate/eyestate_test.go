package eyestate

import (
	"math"
	"testing"
	"time"

	"blinkos/landmark"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func gazeNear(g Gaze, x, y float64) bool { return near(g.X, x, 1e-9) && near(g.Y, y, 1e-9) }

func TestUpdateMeasuresEARAndGaze(t *testing.T) {
	tests := []struct {
		name        string
		ear, gx, gy float64
	}{
		{"center", 0.30, 0, 0},
		{"right-down", 0.28, 0.5, 0.4},
		{"left-up", 0.35, -0.7, -0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(DefaultConfig())
			st := e.Update(landmark.SyntheticFace(time.Now(), tt.ear, tt.gx, tt.gy))
			if !st.Confident {
				t.Fatal("expected confident state")
			}
			if !near(st.EAR, tt.ear, 1e-9) {
				t.Errorf("EAR = %v, want %v", st.EAR, tt.ear)
			}
			if !near(st.Gaze.X, tt.gx, 1e-9) || !near(st.Gaze.Y, tt.gy, 1e-9) {
				t.Errorf("gaze = %+v, want (%v, %v)", st.Gaze, tt.gx, tt.gy)
			}
		})
	}
}

func TestSingleEyeFallback(t *testing.T) {
	f := landmark.SyntheticFace(time.Now(), 0.3, 0.2, 0.1)
	// collapse the left eye to a point so it fails the width check
	for _, i := range landmark.LeftEye {
		f.Points[i] = landmark.Point{X: 0.6, Y: 0.45}
	}
	st := New(DefaultConfig()).Update(f)
	if !st.Confident {
		t.Fatal("one good eye should be enough")
	}
	if !near(st.EAR, 0.3, 1e-9) || !near(st.Gaze.X, 0.2, 1e-9) {
		t.Errorf("state = %+v", st)
	}
}

func TestHoldLastOnLowConfidence(t *testing.T) {
	e := New(DefaultConfig())
	t0 := time.Unix(0, 0)
	e.Update(landmark.SyntheticFace(t0, 0.3, 0.4, -0.2))

	st := e.Update(landmark.Frame{At: t0.Add(33 * time.Millisecond)})
	if st.Confident {
		t.Fatal("empty frame should not be confident")
	}
	if !gazeNear(st.Gaze, 0.4, -0.2) {
		t.Errorf("held gaze = %+v", st.Gaze)
	}
	if st.TrackingLost {
		t.Error("lost too early")
	}
}

func TestTrackingLostAfterRecoveryWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecoveryWindow = 100 * time.Millisecond
	e := New(cfg)
	t0 := time.Unix(0, 0)
	e.Update(landmark.SyntheticFace(t0, 0.3, 0.4, 0.4))

	var lostCount int
	for i := 1; i <= 10; i++ {
		st := e.Miss(t0.Add(time.Duration(i) * 33 * time.Millisecond))
		if st.TrackingLost {
			lostCount++
			if st.Gaze != (Gaze{}) {
				t.Errorf("gaze not reset on loss: %+v", st.Gaze)
			}
		}
	}
	if lostCount != 1 {
		t.Errorf("TrackingLost signalled %d times, want 1", lostCount)
	}
	if !e.Lost() {
		t.Error("Lost() = false")
	}

	st := e.Update(landmark.SyntheticFace(t0.Add(time.Second), 0.3, -0.1, 0))
	if !st.Confident || e.Lost() {
		t.Error("recovery should clear lost state")
	}
}

func TestGazeHeldWhileEyesClosed(t *testing.T) {
	e := New(DefaultConfig())
	t0 := time.Unix(0, 0)
	e.Update(landmark.SyntheticFace(t0, 0.3, 0.5, 0.5))

	st := e.Update(landmark.SyntheticFace(t0.Add(33*time.Millisecond), 0.05, -0.9, -0.9))
	if !st.Confident || !st.GazeHeld {
		t.Fatalf("state = %+v, want confident with held gaze", st)
	}
	if !near(st.EAR, 0.05, 1e-9) {
		t.Errorf("EAR = %v", st.EAR)
	}
	if !gazeNear(st.Gaze, 0.5, 0.5) {
		t.Errorf("gaze = %+v, want held (0.5, 0.5)", st.Gaze)
	}
}

func TestNonFiniteLandmarksRejected(t *testing.T) {
	f := landmark.SyntheticFace(time.Now(), 0.3, 0, 0)
	for _, i := range landmark.RightEye {
		f.Points[i].X = math.NaN()
	}
	for _, i := range landmark.LeftEye {
		f.Points[i].Y = math.Inf(1)
	}
	if st := New(DefaultConfig()).Update(f); st.Confident {
		t.Errorf("non-finite landmarks produced confident state %+v", st)
	}
}
