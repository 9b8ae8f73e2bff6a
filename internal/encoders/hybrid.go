package encoders

import (
	"fmt"
	"strings"

	"github.com/smazurov/streamforge/internal/types"
)

// Backend choices accepted by Select besides method names.
const (
	ChoiceAuto   = "auto"
	ChoiceHybrid = "hybrid"
)

var (
	hevcPriority = []types.Method{
		types.MethodNvidia,
		types.MethodQSV,
		types.MethodAMF,
		types.MethodVAAPI,
		types.MethodVideoToolbox,
		types.MethodSoftware,
	}
	vp9Priority = []types.Method{
		types.MethodQSV,
		types.MethodVAAPI,
		types.MethodSoftware,
	}
)

// HybridPair uses different backends for the two output codecs.
type HybridPair struct {
	HEVC Backend
	VP9  Backend
}

// BuildHybrid pairs the best HEVC backend with the best hardware VP9
// backend. It returns false when the two would be the same backend or no
// hardware VP9 encoder exists, since a pair only helps in that case.
func BuildHybrid(backends []Backend) (*HybridPair, bool) {
	hevc, ok := firstByPriority(backends, hevcPriority, func(Backend) bool { return true })
	if !ok {
		return nil, false
	}
	vp9, ok := firstByPriority(backends, vp9Priority, func(b Backend) bool {
		return !b.IsHardware() || b.HardwareVP9
	})
	if !ok || !vp9.HardwareVP9 || hevc.Method == vp9.Method {
		return nil, false
	}
	return &HybridPair{HEVC: hevc, VP9: vp9}, true
}

func firstByPriority(backends []Backend, priority []types.Method, accept func(Backend) bool) (Backend, bool) {
	for _, m := range priority {
		if b, ok := Find(backends, m); ok && accept(b) {
			return b, true
		}
	}
	return Backend{}, false
}

// Selection is the backend used for each output codec.
type Selection struct {
	HEVC Backend
	VP9  Backend
}

// For returns the backend selected for codec.
func (s Selection) For(codec types.Codec) Backend {
	if codec == types.CodecVP9 {
		return s.VP9
	}
	return s.HEVC
}

// IsHybrid reports whether the codecs run on different backends.
func (s Selection) IsHybrid() bool {
	return s.HEVC.Method != s.VP9.Method
}

func (s Selection) String() string {
	if s.IsHybrid() {
		return fmt.Sprintf("hybrid (HEVC: %s, VP9: %s)", s.HEVC.Label, s.VP9.Label)
	}
	return s.HEVC.Label
}

// Select resolves a user choice against detected backends. "auto" prefers a
// hybrid pair and otherwise uses the first backend for both codecs; "hybrid"
// requires a pair; a method name requires that backend to be detected.
func Select(backends []Backend, choice string) (Selection, error) {
	if len(backends) == 0 {
		backends = []Backend{Software()}
	}

	switch choice = strings.ToLower(strings.TrimSpace(choice)); choice {
	case "", ChoiceAuto:
		if pair, ok := BuildHybrid(backends); ok {
			return Selection{HEVC: pair.HEVC, VP9: pair.VP9}, nil
		}
		return Selection{HEVC: backends[0], VP9: backends[0]}, nil
	case ChoiceHybrid:
		pair, ok := BuildHybrid(backends)
		if !ok {
			return Selection{}, types.NewError(types.ErrCodeInvalidSelection, "no hybrid backend pair is available", nil)
		}
		return Selection{HEVC: pair.HEVC, VP9: pair.VP9}, nil
	}

	b, ok := Find(backends, types.Method(choice))
	if !ok {
		if _, known := Lookup(types.Method(choice)); !known {
			return Selection{}, types.NewError(types.ErrCodeInvalidSelection, "unknown backend: "+choice, nil)
		}
		return Selection{}, types.NewError(types.ErrCodeInvalidSelection, "backend not available on this system: "+choice, nil)
	}
	return Selection{HEVC: b, VP9: b}, nil
}

// Choices lists the values Select accepts.
func Choices() []string {
	out := []string{ChoiceAuto, ChoiceHybrid}
	for _, m := range hevcPriority {
		out = append(out, string(m))
	}
	return out
}
