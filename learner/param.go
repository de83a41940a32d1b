package learner

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/weixiaohua/xgboost/pkg/errors"
)

// Format magics distinguish the two learner generations. Their binary
// layouts are incompatible (the legacy format has no booster-name field and
// a different parameter block), so loading must fail fast on the wrong
// generation instead of misparsing.
var (
	boostLearnerMagic   = [8]byte{'x', 'g', 'b', 'l', 'r', 'n', 0, 1}
	regRankLearnerMagic = [8]byte{'x', 'g', 'b', 'l', 'r', 'n', 0, 0}
)

// modelParam is the fixed-size parameter block of the current learner
// generation. The reserved words are written and read byte-for-byte even
// though unused, keeping offsets stable across format revisions.
type modelParam struct {
	BaseScore  float32
	NumFeature uint32
	NumClass   int32
	Reserved   [32]int32
}

func newModelParam() modelParam {
	return modelParam{BaseScore: 0.5}
}

func (p *modelParam) setParam(name, value string) {
	switch name {
	case "base_score":
		if v, err := strconv.ParseFloat(value, 32); err == nil {
			p.BaseScore = float32(v)
		}
	case "num_class":
		if v, err := strconv.Atoi(value); err == nil {
			p.NumClass = int32(v)
		}
	case "bst:num_feature":
		if v, err := strconv.Atoi(value); err == nil {
			p.NumFeature = uint32(v)
		}
	}
}

// legacyModelParam is the parameter block of the legacy RegRank learner.
type legacyModelParam struct {
	BaseScore   float32
	LossType    int32
	NumFeature  int32
	NumClass    int32
	ClearPeriod int32
	Reserved    [14]int32
}

func newLegacyModelParam() legacyModelParam {
	return legacyModelParam{BaseScore: 0.5, LossType: -1}
}

func (p *legacyModelParam) setParam(name, value string) {
	switch name {
	case "base_score":
		if v, err := strconv.ParseFloat(value, 32); err == nil {
			p.BaseScore = float32(v)
		}
	case "loss_type":
		if v, err := strconv.Atoi(value); err == nil {
			p.LossType = int32(v)
		}
	case "num_class":
		if v, err := strconv.Atoi(value); err == nil {
			p.NumClass = int32(v)
		}
	case "clear_period":
		if v, err := strconv.Atoi(value); err == nil {
			p.ClearPeriod = int32(v)
		}
	case "bst:num_feature":
		if v, err := strconv.Atoi(value); err == nil {
			p.NumFeature = int32(v)
		}
	}
}

// paramPair is one entry of the ordered configuration log. The log records
// every SetParam call and is replayed onto the objective and booster the
// moment they are instantiated, since which keys are meaningful is unknown
// until the name strings resolve to concrete types.
type paramPair struct {
	Name  string
	Value string
}

func writeMagic(w io.Writer, magic [8]byte) error {
	if _, err := w.Write(magic[:]); err != nil {
		return errors.Wrap(err, "write format magic")
	}
	return nil
}

// readMagic reads and validates the generation magic. want is the expected
// magic, other the magic of the opposite generation.
func readMagic(r io.Reader, op string, want, other [8]byte) error {
	var got [8]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return errors.NewFormatError(op, "truncated stream")
	}
	if got == other {
		return errors.NewFormatError(op, "model was saved by the other learner generation")
	}
	if got != want {
		return errors.NewFormatError(op, "unrecognized format magic")
	}
	return nil
}

func writeBinary(w io.Writer, v any, msg string) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return errors.Wrap(err, msg)
	}
	return nil
}

func readBinary(r io.Reader, v any, op, reason string) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return errors.NewFormatError(op, reason)
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return errors.Wrap(err, "write string length")
	}
	if _, err := io.WriteString(w, s); err != nil {
		return errors.Wrap(err, "write string bytes")
	}
	return nil
}

func readString(r io.Reader, op string) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", errors.NewFormatError(op, "truncated string length")
	}
	if n > 1<<16 {
		return "", errors.NewFormatError(op, "implausible string length")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.NewFormatError(op, "truncated string bytes")
	}
	return string(buf), nil
}
