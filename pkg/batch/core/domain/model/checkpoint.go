package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// CheckpointFormatVersion is the version written by EncodeCheckpoint.
const CheckpointFormatVersion = 1

// ErrIncompatibleCheckpoint is returned when a persisted checkpoint was written in an unknown format.
// Decode errors wrapping it are also ValidationFailures.
var ErrIncompatibleCheckpoint = errors.New("incompatible checkpoint format")

// Checkpoint is the reader and writer progress of a step at its last committed chunk.
type Checkpoint struct {
	ReaderState ExecutionContext `json:"reader_state"`
	WriterState ExecutionContext `json:"writer_state"`
	// ItemCount is the number of items read in the chunk that produced this checkpoint.
	ItemCount int `json:"item_count"`
	// Metrics is the committed counter snapshot a restarted step resumes from.
	Metrics StepMetrics `json:"metrics"`
}

type checkpointEnvelope struct {
	FormatVersion int             `json:"format_version"`
	Checkpoint    json.RawMessage `json:"checkpoint"`
}

// EncodeCheckpoint serializes cp in the current format. A nil checkpoint encodes to nil.
func EncodeCheckpoint(cp *Checkpoint) ([]byte, error) {
	if cp == nil {
		return nil, nil
	}
	body, err := json.Marshal(cp)
	if err != nil {
		return nil, exception.NewBatchError("checkpoint", "failed to encode checkpoint", err, false, false)
	}
	return json.Marshal(checkpointEnvelope{FormatVersion: CheckpointFormatVersion, Checkpoint: body})
}

// DecodeCheckpoint parses data written by EncodeCheckpoint. Empty data decodes to nil.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var env checkpointEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, exception.NewValidationError("checkpoint", "checkpoint is not a valid envelope", fmt.Errorf("%w: %v", ErrIncompatibleCheckpoint, err))
	}
	if env.FormatVersion != CheckpointFormatVersion {
		return nil, exception.NewValidationError("checkpoint", fmt.Sprintf("checkpoint format version %d is not supported, expected %d", env.FormatVersion, CheckpointFormatVersion), ErrIncompatibleCheckpoint)
	}
	cp := &Checkpoint{}
	if err := json.Unmarshal(env.Checkpoint, cp); err != nil {
		return nil, exception.NewValidationError("checkpoint", "checkpoint body cannot be decoded", fmt.Errorf("%w: %v", ErrIncompatibleCheckpoint, err))
	}
	return cp, nil
}

// Copy returns a deep copy of the checkpoint.
func (cp *Checkpoint) Copy() *Checkpoint {
	if cp == nil {
		return nil
	}
	out := *cp
	out.ReaderState = deepCopyContext(cp.ReaderState)
	out.WriterState = deepCopyContext(cp.WriterState)
	return &out
}

func deepCopyContext(ec ExecutionContext) ExecutionContext {
	if ec == nil {
		return nil
	}
	out := make(ExecutionContext, len(ec))
	for k, v := range ec {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case ExecutionContext:
		return deepCopyContext(t)
	case map[string]interface{}:
		return map[string]interface{}(deepCopyContext(ExecutionContext(t)))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
