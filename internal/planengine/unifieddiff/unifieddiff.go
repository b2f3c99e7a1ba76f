// Package unifieddiff produces and applies line-based unified diffs between
// two text contents. Alignment uses a longest-common-run strategy via
// go-diff's line-mode diff rather than a full Myers diff with context
// lines.
package unifieddiff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DeleteMarker is the diff text stored on a PlanFileChange that represents a
// whole-file deletion, recognizable by the apply step without re-deriving it
// from before/after content.
const DeleteMarker = "--- a/%s\n+++ /dev/null\n@@ file deleted @@\n"

func normalize(s string) (lines []string, trailingNewline bool) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s == "" {
		return nil, false
	}
	trailingNewline = strings.HasSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	lines = strings.Split(s, "\n")
	return lines, trailingNewline
}

type hunk struct {
	aStart, aLen int
	bStart, bLen int
	lines        []string
}

// Unified returns a unified diff of before -> after for the given repo-
// relative path. Returns "" if before == after.
func Unified(path, before, after string) string {
	if before == after {
		return ""
	}

	beforeLines, _ := normalize(before)
	afterLines, _ := normalize(after)

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(joinForDiff(beforeLines), joinForDiff(afterLines))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var hunks []hunk
	aLine, bLine := 1, 1
	var cur *hunk

	flush := func() {
		if cur != nil {
			hunks = append(hunks, *cur)
			cur = nil
		}
	}

	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" {
			continue
		}
		lines := strings.Split(text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			aLine += len(lines)
			bLine += len(lines)
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &hunk{aStart: aLine, bStart: bLine}
			}
			for _, l := range lines {
				cur.lines = append(cur.lines, "-"+l)
			}
			cur.aLen += len(lines)
			aLine += len(lines)
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &hunk{aStart: aLine, bStart: bLine}
			}
			for _, l := range lines {
				cur.lines = append(cur.lines, "+"+l)
			}
			cur.bLen += len(lines)
			bLine += len(lines)
		}
	}
	flush()

	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.aStart, h.aLen, h.bStart, h.bLen)
		for _, l := range h.lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// joinForDiff joins lines with \n, preserving an empty slice as "".
func joinForDiff(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Apply applies a unified diff (as produced by Unified) to before and
// returns the resulting text. Used to verify the diff round-trip property.
func Apply(before, diff string) (string, error) {
	if diff == "" {
		return before, nil
	}
	beforeLines, trailingNewline := normalize(before)

	var result []string
	srcIdx := 0 // 0-based index into beforeLines, i.e. next line to copy (1-based aStart-1)

	lines := strings.Split(diff, "\n")
	i := 0
	for i < len(lines) && !strings.HasPrefix(lines[i], "@@") {
		i++
	}
	for i < len(lines) {
		line := lines[i]
		if !strings.HasPrefix(line, "@@") {
			i++
			continue
		}
		aStart, _, _, _, err := parseHunkHeader(line)
		if err != nil {
			return "", err
		}
		// copy unchanged lines up to aStart-1 (1-based)
		for srcIdx < aStart-1 {
			if srcIdx >= len(beforeLines) {
				return "", errors.New("unified diff: hunk references line past end of source")
			}
			result = append(result, beforeLines[srcIdx])
			srcIdx++
		}
		i++
		for i < len(lines) && !strings.HasPrefix(lines[i], "@@") {
			l := lines[i]
			if l == "" {
				i++
				continue
			}
			switch l[0] {
			case '-':
				srcIdx++
			case '+':
				result = append(result, l[1:])
			}
			i++
		}
	}
	for srcIdx < len(beforeLines) {
		result = append(result, beforeLines[srcIdx])
		srcIdx++
	}

	out := strings.Join(result, "\n")
	if trailingNewline && out != "" {
		out += "\n"
	}
	return out, nil
}

func parseHunkHeader(line string) (aStart, aLen, bStart, bLen int, err error) {
	var junk string
	_, err = fmt.Sscanf(line, "@@ -%d,%d +%d,%d %s", &aStart, &aLen, &bStart, &bLen, &junk)
	if err != nil {
		// aLen/bLen of 1 may be omitted in some generators; not produced by
		// Unified but tolerate it for robustness.
		_, err = fmt.Sscanf(line, "@@ -%d +%d %s", &aStart, &bStart, &junk)
		aLen, bLen = 1, 1
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("parsing hunk header %q: %w", line, err)
		}
	}
	return aStart, aLen, bStart, bLen, nil
}
