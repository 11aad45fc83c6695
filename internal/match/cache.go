package match

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru"
)

const patternCacheSize = 128

// Expectation docs reuse a small set of patterns across requirements and the
// candidate scan evaluates them once per event, so compiles are memoized.
// Failed compiles are cached too; a bad pattern stays bad.
var patterns, _ = lru.New(patternCacheSize)

func compilePattern(expr string) (*regexp.Regexp, error) {
	if patterns != nil {
		if v, ok := patterns.Get(expr); ok {
			switch x := v.(type) {
			case *regexp.Regexp:
				return x, nil
			case error:
				return nil, x
			}
		}
	}
	re, err := regexp.Compile(expr)
	if patterns != nil {
		if err != nil {
			patterns.Add(expr, err)
		} else {
			patterns.Add(expr, re)
		}
	}
	return re, err
}
