package optimization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// WeightVector is an ordered symbol-to-weight mapping. Construction validates
// every entry, so downstream code can rely on finite, non-negative weights
// and a stable iteration order.
type WeightVector struct {
	symbols []string
	values  map[string]float64
}

// WeightEntry is one symbol/weight pair, used for serialized storage.
type WeightEntry struct {
	Symbol string  `msgpack:"symbol" json:"symbol"`
	Weight float64 `msgpack:"weight" json:"weight"`
}

// NewWeightVector builds a validated, normalized weight vector. Symbols keep
// their given order. Weights must be finite and non-negative; a positive sum
// is normalized to 1.
func NewWeightVector(symbols []string, values map[string]float64) (*WeightVector, error) {
	ordered := make([]float64, len(symbols))
	for i, symbol := range symbols {
		w, ok := values[symbol]
		if !ok {
			return nil, fmt.Errorf("missing weight for symbol %s", symbol)
		}
		ordered[i] = w
	}
	if len(values) > len(symbols) {
		return nil, fmt.Errorf("weights contain %d symbols not present in the symbol list", len(values)-len(symbols))
	}

	wv, err := newRawWeightVector(symbols, ordered)
	if err != nil {
		return nil, err
	}

	if sum := wv.Sum(); sum > 0 {
		for _, symbol := range wv.symbols {
			wv.values[symbol] /= sum
		}
	}
	return wv, nil
}

// newRawWeightVector validates entries but keeps the values exactly as given.
// The post-processor uses this to preserve its documented clamp behavior,
// where the sum may deviate slightly from 1 after the second bound pass.
func newRawWeightVector(symbols []string, values []float64) (*WeightVector, error) {
	if len(symbols) != len(values) {
		return nil, fmt.Errorf("symbol/weight length mismatch: %d vs %d", len(symbols), len(values))
	}

	wv := &WeightVector{
		symbols: make([]string, 0, len(symbols)),
		values:  make(map[string]float64, len(symbols)),
	}
	for i, symbol := range symbols {
		if symbol == "" {
			return nil, fmt.Errorf("empty symbol at index %d", i)
		}
		if _, dup := wv.values[symbol]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", symbol)
		}
		w := values[i]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight for %s is not finite", symbol)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight for %s is negative (%v)", symbol, w)
		}
		wv.symbols = append(wv.symbols, symbol)
		wv.values[symbol] = w
	}
	return wv, nil
}

// EmptyWeightVector returns a vector with no positions, as carried by the
// neutral result.
func EmptyWeightVector() *WeightVector {
	return &WeightVector{symbols: []string{}, values: map[string]float64{}}
}

// Len returns the number of symbols.
func (wv *WeightVector) Len() int {
	if wv == nil {
		return 0
	}
	return len(wv.symbols)
}

// Symbols returns the symbols in their stored order.
func (wv *WeightVector) Symbols() []string {
	out := make([]string, len(wv.symbols))
	copy(out, wv.symbols)
	return out
}

// Get returns the weight for a symbol and whether it is present.
func (wv *WeightVector) Get(symbol string) (float64, bool) {
	if wv == nil {
		return 0, false
	}
	w, ok := wv.values[symbol]
	return w, ok
}

// Sum returns the total of all weights.
func (wv *WeightVector) Sum() float64 {
	var sum float64
	for _, symbol := range wv.symbols {
		sum += wv.values[symbol]
	}
	return sum
}

// Values returns the weights as a slice aligned with Symbols().
func (wv *WeightVector) Values() []float64 {
	out := make([]float64, len(wv.symbols))
	for i, symbol := range wv.symbols {
		out[i] = wv.values[symbol]
	}
	return out
}

// Map returns a copy of the weights keyed by symbol.
func (wv *WeightVector) Map() map[string]float64 {
	out := make(map[string]float64, len(wv.symbols))
	for symbol, w := range wv.values {
		out[symbol] = w
	}
	return out
}

// Entries returns ordered symbol/weight pairs for storage encoders.
func (wv *WeightVector) Entries() []WeightEntry {
	out := make([]WeightEntry, len(wv.symbols))
	for i, symbol := range wv.symbols {
		out[i] = WeightEntry{Symbol: symbol, Weight: wv.values[symbol]}
	}
	return out
}

// MarshalJSON renders the vector as a JSON object in symbol order.
func (wv *WeightVector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, symbol := range wv.symbols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(symbol)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(wv.values[symbol])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a JSON object of symbol to weight. Symbols are
// ordered lexicographically since JSON objects carry no order.
func (wv *WeightVector) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	symbols := make([]string, 0, len(raw))
	for symbol := range raw {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	values := make([]float64, len(symbols))
	for i, symbol := range symbols {
		values[i] = raw[symbol]
	}

	parsed, err := newRawWeightVector(symbols, values)
	if err != nil {
		return err
	}
	*wv = *parsed
	return nil
}
