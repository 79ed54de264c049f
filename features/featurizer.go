package features

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/neurlang/cartography/datasets"
	"github.com/neurlang/cartography/hash"
)

// Feature namespaces, mixed into the string hash salt
const (
	nsBias uint32 = iota + 1
	nsPremise
	nsHypothesis
	nsBigram
	nsCross
	nsOverlap
	nsCoverage
	nsNegation
	nsLength
)

// DefaultBuckets is the default size of the hashed feature space
const DefaultBuckets = 1 << 18

// DefaultCrossLimit bounds the tokens per side used for word pair features
const DefaultCrossLimit = 32

var negations = map[string]struct{}{
	"no": {}, "not": {}, "never": {}, "nobody": {}, "nothing": {},
	"none": {}, "nowhere": {}, "cannot": {}, "without": {},
}

// Featurizer maps examples into [0, Buckets)
type Featurizer struct {
	Buckets    uint32 `json:"buckets"`
	MaxLength  int    `json:"max_length"`
	Salt       uint32 `json:"salt"`
	CrossLimit int    `json:"cross_limit"`
}

// New returns a featurizer with defaults for zero values
func New(buckets uint32, maxLength int, salt uint32) Featurizer {
	if buckets == 0 {
		buckets = DefaultBuckets
	}
	return Featurizer{Buckets: buckets, MaxLength: maxLength, Salt: salt, CrossLimit: DefaultCrossLimit}
}

// Tokenize lowercases and splits text into words. Apostrophes stay inside
// words so contractions like "isn't" survive.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func (f Featurizer) truncate(tokens []string) []string {
	if f.MaxLength > 0 && len(tokens) > f.MaxLength {
		return tokens[:f.MaxLength]
	}
	return tokens
}

func isNegation(tok string) bool {
	if _, ok := negations[tok]; ok {
		return true
	}
	return strings.HasSuffix(tok, "n't")
}

type collector struct {
	raw   []uint32
	salts []uint32
	salt  uint32
}

func (c *collector) add(ns uint32, key string) {
	c.raw = append(c.raw, hash.StringHash(c.salt^ns, key))
	c.salts = append(c.salts, c.salt+ns)
}

// Features returns the sorted, unique feature indices of the example
func (f Featurizer) Features(e datasets.Example) []uint32 {
	premise := f.truncate(Tokenize(e.Premise))
	hypothesis := f.truncate(Tokenize(e.Hypothesis))

	c := collector{salt: f.Salt}
	c.add(nsBias, "")

	inPremise := make(map[string]struct{}, len(premise))
	for _, tok := range premise {
		inPremise[tok] = struct{}{}
		c.add(nsPremise, tok)
	}

	var shared, negated int
	for i, tok := range hypothesis {
		c.add(nsHypothesis, tok)
		if i > 0 {
			c.add(nsBigram, hypothesis[i-1]+" "+tok)
		}
		if _, ok := inPremise[tok]; ok {
			shared++
			c.add(nsOverlap, "same:"+tok)
		} else {
			c.add(nsOverlap, "new:"+tok)
		}
		if isNegation(tok) {
			negated++
			c.add(nsNegation, tok)
		}
	}
	if negated == 0 {
		c.add(nsNegation, "")
	}

	limit := f.CrossLimit
	if limit <= 0 {
		limit = DefaultCrossLimit
	}
	for i, p := range premise {
		if i >= limit {
			break
		}
		for j, h := range hypothesis {
			if j >= limit {
				break
			}
			if p != h {
				c.add(nsCross, p+"|"+h)
			}
		}
	}

	coverage := 0
	if len(hypothesis) > 0 {
		coverage = shared * 4 / len(hypothesis)
	}
	c.add(nsCoverage, fmt.Sprint(coverage))
	c.add(nsLength, fmt.Sprint(lengthBucket(len(premise)-len(hypothesis))))

	out := make([]uint32, len(c.raw))
	hash.HashVectorized(out, c.raw, c.salts, f.Buckets)
	return unique(out)
}

func lengthBucket(diff int) int {
	switch {
	case diff < -4:
		return -2
	case diff < 0:
		return -1
	case diff < 5:
		return 0
	case diff < 12:
		return 1
	}
	return 2
}

func unique(in []uint32) []uint32 {
	sort.Slice(in, func(i, j int) bool { return in[i] < in[j] })
	o := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			o = append(o, v)
		}
	}
	return o
}
