package cache

import (
	"math"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Priority biases eviction. High-priority entries are the last to go and
// enter L1 directly.
type Priority string

// Entry priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// weight returns the eviction score multiplier for p.
func (p Priority) weight() float64 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 0.5
	default:
		return 1
	}
}

// NoExpiry as a TTL keeps an entry until it is evicted or deleted.
const NoExpiry time.Duration = -1

// compressMinSize is the smallest payload worth compressing.
const compressMinSize = 1024

// fallbackSize is charged for values that cannot be measured.
const fallbackSize = 1024

// Entry is a cached value with its bookkeeping.
type Entry struct {
	Key         string
	Value       any
	Timestamp   time.Time // Insertion time.
	TTL         time.Duration
	Priority    Priority
	AccessCount int
	Size        int64
	Compressed  bool
	Metadata    map[string]any
	LastAccess  time.Time

	// wasString records the original kind of a compressed value.
	wasString bool
}

func (e *Entry) expired(now time.Time) bool {
	if e.TTL == NoExpiry {
		return false
	}
	return now.Sub(e.Timestamp) > e.TTL
}

// score ranks an entry for eviction; lower scores go first.
func (e *Entry) score(now time.Time) float64 {
	idle := float64(now.Sub(e.LastAccess).Milliseconds())
	access := math.Max(0.1, 1/float64(e.AccessCount+1))
	return idle * e.Priority.weight() * access * math.Log(float64(e.Size)+1)
}

// sizeOf estimates the memory a value occupies.
func sizeOf(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		return int64(len(x) * 2)
	case []byte:
		return int64(len(x))
	case bool:
		return 4
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 8
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fallbackSize
	}
	return int64(len(b) * 2)
}

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// compress returns the zstd form of a string or byte slice value when it is
// large enough to benefit.
func compress(v any) (out []byte, wasString, ok bool) {
	var src []byte
	switch x := v.(type) {
	case string:
		src, wasString = []byte(x), true
	case []byte:
		src = x
	default:
		return nil, false, false
	}
	if len(src) < compressMinSize {
		return nil, false, false
	}
	return encoder.EncodeAll(src, make([]byte, 0, len(src)/2)), wasString, true
}

func decompress(e *Entry) (any, error) {
	raw, _ := e.Value.([]byte)
	b, err := decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, err
	}
	if e.wasString {
		return string(b), nil
	}
	return b, nil
}
