// Package redact scrubs secret-shaped substrings out of arbitrary text
// before it is persisted, logged, or otherwise surfaced outside the process
// (e.g. raw-model-output previews in generator error messages). It is
// distinct from the Plan Safety Gate's literal-pattern redaction
// (internal/planengine/safety), which replaces a small configured set of
// exact substrings with "<REDACTED>"; this package does broader best-effort
// scrubbing using entropy analysis plus gitleaks' pattern library.
package redact

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// secretPattern matches high-entropy strings that may be secrets.
var secretPattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy for a string to be
// considered a secret. High enough to avoid false positives on common words
// and identifiers, low enough to catch typical API keys and tokens.
const entropyThreshold = 4.5

var (
	gitleaksDetector     *detect.Detector
	gitleaksDetectorOnce sync.Once
)

func getDetector() *detect.Detector {
	gitleaksDetectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		gitleaksDetector = d
	})
	return gitleaksDetector
}

type region struct{ start, end int }

// String replaces secrets in s with "REDACTED" using layered detection:
// entropy-based (high-entropy alphanumeric runs) and gitleaks pattern rules.
// A string is redacted if either method flags it.
func String(s string) string {
	var regions []region

	for _, loc := range secretPattern.FindAllStringIndex(s, -1) {
		span := s[loc[0]:loc[1]]
		if looksLikeHexDigest(span) {
			continue
		}
		if shannonEntropy(span) > entropyThreshold {
			regions = append(regions, region{loc[0], loc[1]})
		}
	}

	if d := getDetector(); d != nil {
		for _, f := range d.DetectString(s) {
			if f.Secret == "" {
				continue
			}
			searchFrom := 0
			for {
				idx := strings.Index(s[searchFrom:], f.Secret)
				if idx < 0 {
					break
				}
				absIdx := searchFrom + idx
				regions = append(regions, region{absIdx, absIdx + len(f.Secret)})
				searchFrom = absIdx + len(f.Secret)
			}
		}
	}

	if len(regions) == 0 {
		return s
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].start < regions[j].start })
	merged := []region{regions[0]}
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}

	var b strings.Builder
	prev := 0
	for _, r := range merged {
		b.WriteString(s[prev:r.start])
		b.WriteString("REDACTED")
		prev = r.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

// Bytes is a convenience wrapper around String for []byte content.
func Bytes(b []byte) []byte {
	s := string(b)
	redacted := String(s)
	if redacted == s {
		return b
	}
	return []byte(redacted)
}

// hexDigestPattern matches a pure lowercase-hex run the length of a git
// abbreviated/full commit SHA (7-40 chars) or a contenthash.SHA256Hex digest
// (64 chars). Plan rationale and generator output routinely quote both
// ("reverts commit a1b2c3d", "content hash mismatch: <hex>") and neither is
// a secret; entropy alone can't tell a commit SHA from an API token, so
// those spans are exempted from the entropy check before it runs.
var hexDigestPattern = regexp.MustCompile(`^[0-9a-f]+$`)

func looksLikeHexDigest(s string) bool {
	n := len(s)
	if n != 64 && (n < 7 || n > 40) {
		return false
	}
	return hexDigestPattern.MatchString(s)
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for i := range len(s) {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
