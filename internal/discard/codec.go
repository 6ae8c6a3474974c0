package discard

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tinylib/msgp/msgp"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// EncodeMsg writes r as a msgpack map.
func (r *Result) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(7); err != nil {
		return err
	}
	if err := w.WriteString("key"); err != nil {
		return err
	}
	if err := w.WriteString(r.Key); err != nil {
		return err
	}
	if err := w.WriteString("rounds"); err != nil {
		return err
	}
	if err := w.WriteInt(r.Rounds); err != nil {
		return err
	}
	if err := w.WriteString("samples"); err != nil {
		return err
	}
	if err := w.WriteInt(r.Samples); err != nil {
		return err
	}
	if err := w.WriteString("objective"); err != nil {
		return err
	}
	if err := w.WriteString(r.Objective); err != nil {
		return err
	}
	if err := w.WriteString("scores"); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(r.ScoresPerDiscardCount))); err != nil {
		return err
	}
	for _, s := range r.ScoresPerDiscardCount {
		if err := w.WriteFloat64(float64(s)); err != nil {
			return err
		}
	}
	if err := w.WriteString("best"); err != nil {
		return err
	}
	if err := w.WriteFloat64(float64(r.BestScore)); err != nil {
		return err
	}
	if err := w.WriteString("discard"); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(r.BestDiscard))); err != nil {
		return err
	}
	for _, pos := range r.BestDiscard {
		if err := w.WriteInt(pos); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsg reads a map written by EncodeMsg. Unknown fields are skipped.
func (r *Result) DecodeMsg(rd *msgp.Reader) error {
	n, err := rd.ReadMapHeader()
	if err != nil {
		return err
	}
	*r = Result{}
	for i := uint32(0); i < n; i++ {
		field, err := rd.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "key":
			if r.Key, err = rd.ReadString(); err != nil {
				return err
			}
		case "rounds":
			if r.Rounds, err = rd.ReadInt(); err != nil {
				return err
			}
		case "samples":
			if r.Samples, err = rd.ReadInt(); err != nil {
				return err
			}
		case "objective":
			if r.Objective, err = rd.ReadString(); err != nil {
				return err
			}
		case "scores":
			sz, err := rd.ReadArrayHeader()
			if err != nil {
				return err
			}
			if int(sz) != len(r.ScoresPerDiscardCount) {
				return fmt.Errorf("scores: want %d entries, got %d", len(r.ScoresPerDiscardCount), sz)
			}
			for j := range r.ScoresPerDiscardCount {
				f, err := rd.ReadFloat64()
				if err != nil {
					return err
				}
				r.ScoresPerDiscardCount[j] = Score(f)
			}
		case "best":
			f, err := rd.ReadFloat64()
			if err != nil {
				return err
			}
			r.BestScore = Score(f)
		case "discard":
			sz, err := rd.ReadArrayHeader()
			if err != nil {
				return err
			}
			r.BestDiscard = make([]int, sz)
			for j := range r.BestDiscard {
				if r.BestDiscard[j], err = rd.ReadInt(); err != nil {
					return err
				}
			}
		default:
			if err := rd.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Marshal encodes r to msgpack.
func Marshal(r *Result) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := msgp.NewWriter(buf)
	if err := r.EncodeMsg(w); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal decodes msgpack produced by Marshal.
func Unmarshal(data []byte, r *Result) error {
	return r.DecodeMsg(msgp.NewReader(bytes.NewReader(data)))
}
