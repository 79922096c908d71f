package runner

import (
	"context"
	"fmt"
	"log"
	"slices"

	"blockterrain.ai/internal/persistence/snapshot"
	"blockterrain.ai/internal/sim/encoding"
)

// Mismatch is one field where a replayed pass differs from its snapshot.
type Mismatch struct {
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string { return fmt.Sprintf("%s: want %s got %s", m.Field, m.Want, m.Got) }

// Verify regenerates the pass recorded in snap from its tuning and seed and
// reports every difference. An empty result means the snapshot replays
// exactly.
func Verify(ctx context.Context, snap snapshot.SnapshotV1, logger *log.Logger) ([]Mismatch, error) {
	tune := snap.Tuning
	tune.Seed = snap.Header.Seed
	pass, err := Run(ctx, tune, logger)
	if err != nil {
		return nil, err
	}

	var out []Mismatch
	check := func(field, want, got string) {
		if want != got {
			out = append(out, Mismatch{Field: field, Want: want, Got: got})
		}
	}
	check("strategy", snap.Header.Strategy, pass.Strategy)
	check("digest", snap.Header.Digest, pass.Digest)
	check("field_digest", snap.FieldDigest, pass.FieldDigest)
	check("levels_rle", short(snap.LevelsRLE), short(encoding.EncodeLevels(pass.Assignment.Levels)))
	check("counts", fmt.Sprint(snap.Counts), fmt.Sprint(pass.Assignment.Counts))
	if !slices.Equal(snap.Owner, pass.Assignment.Owner) {
		out = append(out, Mismatch{Field: "owner", Want: fmt.Sprintf("%d cells", len(snap.Owner)), Got: fmt.Sprintf("%d cells", len(pass.Assignment.Owner))})
	}
	if !slices.Equal(snap.Offset, pass.Offset) {
		check("offset", fmt.Sprint(snap.Offset), fmt.Sprint(pass.Offset))
	}
	return out, nil
}

func short(s string) string {
	if len(s) <= 24 {
		return s
	}
	return s[:24] + "..."
}
