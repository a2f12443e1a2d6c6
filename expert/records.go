package expert

// Record keys written by Forward besides the metric names.
const (
	RecordLoss        = "loss"
	RecordHypothesis  = "hypothesis"
	RecordGroundtruth = "groundtruth"
	RecordFilename    = "filename"
)

// Records accumulates per-batch values for one split. Keys keep the order
// in which they were first written.
type Records struct {
	keys    []string
	scalars map[string][]float64
	texts   map[string][]string
}

// NewRecords creates an empty accumulator.
func NewRecords() *Records {
	return &Records{scalars: map[string][]float64{}, texts: map[string][]string{}}
}

func (r *Records) touch(key string) {
	if _, ok := r.scalars[key]; ok {
		return
	}
	if _, ok := r.texts[key]; ok {
		return
	}
	r.keys = append(r.keys, key)
}

// AddScalar appends a numeric value under key.
func (r *Records) AddScalar(key string, v float64) {
	r.touch(key)
	r.scalars[key] = append(r.scalars[key], v)
}

// AddText appends a text value under key.
func (r *Records) AddText(key, v string) {
	r.touch(key)
	r.texts[key] = append(r.texts[key], v)
}

// Keys returns the keys in first-write order.
func (r *Records) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Scalars returns the numeric values of key.
func (r *Records) Scalars(key string) []float64 { return r.scalars[key] }

// Texts returns the text values of key.
func (r *Records) Texts(key string) []string { return r.texts[key] }

// IsScalar reports whether key holds numeric values.
func (r *Records) IsScalar(key string) bool {
	return len(r.scalars[key]) > 0
}
