package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// maxRun keeps run lengths well inside int on every platform.
const maxRun = 1 << 31

// EncodeLevels encodes a level grid into base64(varint pairs). Each pair is
// (level+1, run_len); 0 stands for an unassigned cell.
func EncodeLevels(levels []int) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(levels) {
		v := levels[i]
		run := 1
		for j := i + 1; j < len(levels) && levels[j] == v && run < maxRun; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v+1))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeLevels reverses EncodeLevels. cells, when positive, is the expected
// decoded length.
func DecodeLevels(b64 string, cells int) ([]int, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, max(cells, 0))
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 1<<16 {
			return nil, fmt.Errorf("level too large: %d", v-1)
		}
		if run == 0 || run > maxRun {
			return nil, fmt.Errorf("bad run length %d", run)
		}
		if cells > 0 && len(out)+int(run) > cells {
			return nil, fmt.Errorf("runs exceed %d cells", cells)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, int(v)-1)
		}
	}
	if cells > 0 && len(out) != cells {
		return nil, fmt.Errorf("decoded %d cells, want %d", len(out), cells)
	}
	return out, nil
}
