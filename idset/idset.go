// Package idset implements a compact set of non-negative rank identifiers.
//
// Sets are stored as an ordered, non-overlapping, non-adjacent list of
// inclusive ranges and encode to/decode from the canonical RLE string form
// used on the wire (e.g. "0-3,7,9-11"). All mutating operations return a new
// set; the zero value is the empty set.
package idset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrDecode is returned (wrapped) when Decode cannot parse the input as a
// canonical RLE range-list. Callers in the router/wire layer map this to a
// PROTOCOL error kind per spec §7.
var ErrDecode = errors.New("idset: decode failed")

// Rank identifies a process instance within the overlay tree. 0 is root.
type Rank uint32

type span struct {
	lo, hi Rank // inclusive
}

// Set is an immutable-by-convention compact set of ranks.
// The zero value is the empty set.
type Set struct {
	spans []span
}

// New builds a Set from individual ranks, in any order, with duplicates
// allowed.
func New(ranks ...Rank) Set {
	var s Set
	for _, r := range ranks {
		s = s.Add(r)
	}
	return s
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool {
	return len(s.spans) == 0
}

// Len returns the number of ranks in the set.
func (s Set) Len() int {
	n := 0
	for _, sp := range s.spans {
		n += int(sp.hi-sp.lo) + 1
	}
	return n
}

// Contains reports whether r is a member of s.
func (s Set) Contains(r Rank) bool {
	lo, hi := 0, len(s.spans)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		sp := s.spans[mid]
		switch {
		case r < sp.lo:
			hi = mid - 1
		case r > sp.hi:
			lo = mid + 1
		default:
			return true
		}
	}
	return false
}

// Add returns a new set with r added.
func (s Set) Add(r Rank) Set {
	return s.Union(Set{spans: []span{{lo: r, hi: r}}})
}

// Remove returns a new set with r removed.
func (s Set) Remove(r Rank) Set {
	return s.Difference(Set{spans: []span{{lo: r, hi: r}}})
}

// Ranks returns the members of s in ascending order.
func (s Set) Ranks() []Rank {
	out := make([]Rank, 0, s.Len())
	for _, sp := range s.spans {
		for r := sp.lo; r <= sp.hi; r++ {
			out = append(out, r)
			if r == sp.hi { // guards overflow when hi == max Rank
				break
			}
		}
	}
	return out
}

// Union returns the set union of s and other.
func (s Set) Union(other Set) Set {
	merged := mergeSpans(append(append([]span{}, s.spans...), other.spans...))
	return Set{spans: merged}
}

// Intersect returns the set intersection of s and other.
func (s Set) Intersect(other Set) Set {
	var out []span
	i, j := 0, 0
	for i < len(s.spans) && j < len(other.spans) {
		a, b := s.spans[i], other.spans[j]
		lo := maxRank(a.lo, b.lo)
		hi := minRank(a.hi, b.hi)
		if lo <= hi {
			out = append(out, span{lo: lo, hi: hi})
		}
		if a.hi < b.hi {
			i++
		} else {
			j++
		}
	}
	return Set{spans: out}
}

// Difference returns the ranks in s that are not in other.
func (s Set) Difference(other Set) Set {
	var out []span
	for _, a := range s.spans {
		lo := a.lo
		for _, b := range other.spans {
			if b.hi < lo || b.lo > a.hi {
				continue
			}
			if b.lo > lo {
				out = append(out, span{lo: lo, hi: b.lo - 1})
			}
			if b.hi >= a.hi {
				lo = a.hi + 1 // consumed to the end
				break
			}
			lo = b.hi + 1
		}
		if lo <= a.hi {
			out = append(out, span{lo: lo, hi: a.hi})
		}
	}
	return Set{spans: mergeSpans(out)}
}

// Equal reports whether s and other contain exactly the same ranks.
func (s Set) Equal(other Set) bool {
	if len(s.spans) != len(other.spans) {
		return false
	}
	for i := range s.spans {
		if s.spans[i] != other.spans[i] {
			return false
		}
	}
	return true
}

// Subset reports whether every rank in s is also in other.
func (s Set) Subset(other Set) bool {
	return s.Intersect(other).Equal(s)
}

// String renders the canonical RLE encoding, e.g. "0-3,7,9-11".
func (s Set) String() string {
	return Encode(s)
}

func mergeSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sortSpans(spans)
	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		// adjacent-or-overlapping: compare in uint64 to avoid wraparound
		// when last.hi is already the maximum Rank value.
		if uint64(sp.lo) <= uint64(last.hi)+1 {
			if sp.hi > last.hi {
				last.hi = sp.hi
			}
			continue
		}
		out = append(out, sp)
	}
	return append([]span{}, out...)
}

func sortSpans(spans []span) {
	// insertion sort: input batches are small (children-per-rank sized)
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].lo > spans[j].lo; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}
}

func maxRank(a, b Rank) Rank {
	if a > b {
		return a
	}
	return b
}

func minRank(a, b Rank) Rank {
	if a < b {
		return a
	}
	return b
}

// Encode renders s as the canonical RLE range-list string.
func Encode(s Set) string {
	if s.Empty() {
		return ""
	}
	parts := make([]string, 0, len(s.spans))
	for _, sp := range s.spans {
		if sp.lo == sp.hi {
			parts = append(parts, strconv.FormatUint(uint64(sp.lo), 10))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", sp.lo, sp.hi))
		}
	}
	return strings.Join(parts, ",")
}

// Decode parses the canonical RLE range-list string produced by Encode.
// An empty string decodes to the empty set. Malformed input returns
// ErrDecode, which callers surface as a PROTOCOL error per spec §7.
func Decode(str string) (Set, error) {
	if str == "" {
		return Set{}, nil
	}
	var spans []span
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Set{}, fmt.Errorf("%w: empty segment in %q", ErrDecode, str)
		}
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			loStr, hiStr := part[:dash], part[dash+1:]
			lo, err := strconv.ParseUint(loStr, 10, 32)
			if err != nil {
				return Set{}, fmt.Errorf("%w: bad range start %q: %v", ErrDecode, part, err)
			}
			hi, err := strconv.ParseUint(hiStr, 10, 32)
			if err != nil {
				return Set{}, fmt.Errorf("%w: bad range end %q: %v", ErrDecode, part, err)
			}
			if hi < lo {
				return Set{}, fmt.Errorf("%w: descending range %q", ErrDecode, part)
			}
			spans = append(spans, span{lo: Rank(lo), hi: Rank(hi)})
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return Set{}, fmt.Errorf("%w: bad rank %q: %v", ErrDecode, part, err)
		}
		spans = append(spans, span{lo: Rank(v), hi: Rank(v)})
	}
	return Set{spans: mergeSpans(spans)}, nil
}

// MarshalText implements encoding.TextMarshaler so a Set can be used
// directly as a msgpack/json string field.
func (s Set) MarshalText() ([]byte, error) {
	return []byte(Encode(s)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Set) UnmarshalText(text []byte) error {
	decoded, err := Decode(string(text))
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder, encoding a Set as its
// canonical RLE string rather than as a struct of spans.
func (s Set) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(Encode(s))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (s *Set) DecodeMsgpack(dec *msgpack.Decoder) error {
	str, err := dec.DecodeString()
	if err != nil {
		return err
	}
	decoded, err := Decode(str)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}
