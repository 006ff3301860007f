package calibration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"blinkos/eyestate"
	"blinkos/intent"
)

// ProfileVersion is bumped whenever the record layout changes.
const ProfileVersion = 1

// PointRecord is one reference point with the averaged observation used for
// the fit.
type PointRecord struct {
	Target   intent.Point  `msgpack:"target"`
	Observed eyestate.Gaze `msgpack:"observed"`
	Samples  int           `msgpack:"samples"`
}

// Profile is an immutable committed calibration. A new calibration produces
// a new Profile; nothing mutates one after Commit.
type Profile struct {
	Version   int                    `msgpack:"v"`
	ID        string                 `msgpack:"id"`
	CreatedAt time.Time              `msgpack:"created_at"`
	ScreenW   int                    `msgpack:"screen_w"`
	ScreenH   int                    `msgpack:"screen_h"`
	Margin    float64                `msgpack:"margin"`
	Points    [NumPoints]PointRecord `msgpack:"points"`
	Model     Model                  `msgpack:"model"`
	RMSPixels float64                `msgpack:"rms_px"`
	Cond      float64                `msgpack:"cond"`
}

func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrInvalidProfile)
	}
	if p.Version != ProfileVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidProfile, p.Version, ProfileVersion)
	}
	for i, pt := range p.Points {
		if pt.Samples < 1 {
			return fmt.Errorf("%w: point %d has no samples", ErrInvalidProfile, i)
		}
	}
	if !p.Model.valid() {
		return fmt.Errorf("%w: model parameters out of range", ErrInvalidProfile)
	}
	return nil
}

// Encode serializes the profile as an opaque versioned record.
func Encode(p *Profile) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(p)
}

func Decode(data []byte) (*Profile, error) {
	var p Profile
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Identity returns an uncalibrated profile that maps the gaze range linearly
// onto the screen with the given gain, centered. It exists so the cursor can
// be driven before a user has calibrated.
func Identity(gain float64) *Profile {
	p := &Profile{
		Version:   ProfileVersion,
		ID:        "identity",
		CreatedAt: time.Now(),
		Model: Model{
			StdX: 1,
			StdY: 1,
			CX:   [numTerms]float64{0.5, gain / 2},
			CY:   [numTerms]float64{0.5, 0, gain / 2},
		},
	}
	for i := range p.Points {
		n := GridNorm(i, 0)
		p.Points[i] = PointRecord{
			Target:   n,
			Observed: eyestate.Gaze{X: (2*n.X - 1) / gain, Y: (2*n.Y - 1) / gain},
			Samples:  1,
		}
	}
	return p
}

func newProfileID() string {
	return uuid.NewString()
}
