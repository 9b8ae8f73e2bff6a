package pipeline

import (
	"context"
	"slices"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/types"
)

// Selection is what a run will produce.
type Selection struct {
	Renditions []ladder.Rendition
	Codecs     []types.Codec
	// Backend is a choice accepted by encoders.Select.
	Backend string
}

// Selector decides renditions, codecs and backend once the source is known.
type Selector interface {
	Select(ctx context.Context, src *types.MediaDescriptor, renditions []ladder.Rendition, backends []encoders.Backend) (Selection, error)
}

// StaticSelector applies choices fixed up front, typically from flags.
// Empty fields select the whole ladder, both codecs and the auto backend.
type StaticSelector struct {
	Qualities []string
	Codecs    []string
	Backend   string
}

// Select implements Selector.
func (s StaticSelector) Select(_ context.Context, _ *types.MediaDescriptor, l []ladder.Rendition, _ []encoders.Backend) (Selection, error) {
	renditions, err := ladder.Filter(l, s.Qualities)
	if err != nil {
		return Selection{}, err
	}

	codecs := slices.Clone(types.Codecs)
	if len(s.Codecs) > 0 {
		codecs, err = parseCodecs(s.Codecs)
		if err != nil {
			return Selection{}, err
		}
	}

	backend := s.Backend
	if backend == "" {
		backend = encoders.ChoiceAuto
	}
	return Selection{Renditions: renditions, Codecs: codecs, Backend: backend}, nil
}

// parseCodecs resolves names and returns them in encode order (VP9 first).
func parseCodecs(names []string) ([]types.Codec, error) {
	want := make(map[types.Codec]bool, len(names))
	for _, n := range names {
		c, ok := types.ParseCodec(n)
		if !ok {
			return nil, types.NewError(types.ErrCodeInvalidSelection, "unknown codec: "+n, nil)
		}
		want[c] = true
	}
	out := make([]types.Codec, 0, len(want))
	for _, c := range types.Codecs {
		if want[c] {
			out = append(out, c)
		}
	}
	return out, nil
}
