package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxStripPasses = 4

var (
	bracketBlockPattern  = regexp.MustCompile(`\[[^\]]*\]|\{[^}]*\}|\([^)]*\)`)
	parenYearPattern     = regexp.MustCompile(`\((\d{4})\)`)
	trailerSuffixPattern = regexp.MustCompile(`(?i)[\s\-:|]*\(?\s*(official\s+)?(final\s+)?(trailer|teaser)(\s*#?\s*\d+)?\s*\)?(\s+(hd|4k|uhd))?\s*$`)
	subtitleSeparators   = []string{": ", " - ", " – ", " | "}
)

// strongNoise tokens are noise wherever they appear after the first token.
var strongNoise = map[string]struct{}{
	"480p": {}, "576p": {}, "720p": {}, "1080p": {}, "1080i": {}, "2160p": {}, "4320p": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {}, "xvid": {}, "divx": {},
	"aac": {}, "aac2": {}, "ac3": {}, "dts": {}, "dd5": {}, "ddp5": {}, "eac3": {}, "truehd": {}, "atmos": {},
	"10bit": {}, "8bit": {}, "hdr": {}, "hdr10": {}, "sdr": {},
	"bluray": {}, "blu": {}, "bdrip": {}, "brrip": {}, "webrip": {}, "webdl": {}, "hdtv": {}, "dvdrip": {},
	"dvdscr": {}, "remux": {}, "hdrip": {}, "camrip": {}, "hdcam": {}, "telesync": {},
	"yify": {}, "yts": {}, "rarbg": {}, "etrg": {},
	"mkv": {}, "mp4": {}, "avi": {}, "mov": {}, "wmv": {}, "flv": {}, "webm": {}, "m4v": {}, "mpg": {}, "ts": {},
}

// weakNoise tokens are ordinary words in prose titles and only count as noise
// inside dotted release names.
var weakNoise = map[string]struct{}{
	"web": {}, "hd": {}, "uhd": {}, "4k": {}, "sd": {}, "cam": {}, "dvd": {}, "multi": {},
	"limited": {}, "internal": {}, "extended": {}, "unrated": {}, "proper": {}, "repack": {},
	"remastered": {}, "dubbed": {}, "subbed": {}, "imax": {},
}

var fileExtensions = []string{".mkv", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpg"}

// ExtractYear returns the release year in title. A parenthesised year wins.
// Bare year tokens after the first word only count in dotted release names;
// in prose titles ("Wonder Woman 1984") they are part of the name.
func ExtractYear(title string) (int, bool) {
	if m := parenYearPattern.FindStringSubmatch(title); m != nil {
		if year, ok := plausibleYear(m[1]); ok {
			return year, true
		}
	}
	if !isReleaseName(title) {
		return 0, false
	}
	tokens := splitTokens(title, true)
	for i, tok := range tokens {
		if i == 0 {
			continue
		}
		if year, ok := plausibleYear(strings.Trim(tok, "()[]")); ok {
			return year, true
		}
	}
	return 0, false
}

// StripNoise removes bracketed tag blocks, quality/source/container tokens and
// trailing trailer/teaser suffixes. A noise token appearing mid-string
// truncates the title there. Returns the trimmed input when nothing is left.
func StripNoise(title string) string {
	current := strings.TrimSpace(title)
	for i := 0; i < maxStripPasses; i++ {
		next := stripPass(current)
		if next == "" || next == current {
			break
		}
		current = next
	}
	return current
}

// BaseTitle is StripNoise with any subtitle after a separator removed
// ("Mission: Impossible - Fallout" -> "Mission").
func BaseTitle(title string) string {
	stripped := StripNoise(title)
	for _, sep := range subtitleSeparators {
		if idx := strings.Index(stripped, sep); idx > 0 {
			stripped = strings.TrimSpace(stripped[:idx])
		}
	}
	return stripped
}

func stripPass(title string) string {
	s := trimExtension(title)

	if without := strings.TrimSpace(bracketBlockPattern.ReplaceAllString(s, " ")); without != "" {
		s = without
	}

	releaseName := isReleaseName(s)
	tokens := splitTokens(s, releaseName)
	kept := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if i > 0 && isNoiseToken(tok, releaseName) {
			break
		}
		if i > 0 && releaseName {
			if _, ok := plausibleYear(tok); ok {
				break
			}
		}
		kept = append(kept, tok)
	}

	out := strings.Join(kept, " ")
	out = trailerSuffixPattern.ReplaceAllString(out, "")
	return strings.TrimRight(strings.TrimSpace(out), " -:|")
}

func trimExtension(title string) string {
	lower := strings.ToLower(title)
	for _, ext := range fileExtensions {
		if strings.HasSuffix(lower, ext) && len(title) > len(ext) {
			return title[:len(title)-len(ext)]
		}
	}
	return title
}

// isReleaseName reports whether title looks like a scene-style release name,
// words joined by dots or underscores rather than spaces.
func isReleaseName(title string) bool {
	trimmed := strings.TrimSpace(title)
	return !strings.Contains(trimmed, " ") && strings.ContainsAny(trimmed, "._")
}

func splitTokens(title string, releaseName bool) []string {
	return strings.FieldsFunc(title, func(r rune) bool {
		if r == ' ' || r == '\t' || r == '_' {
			return true
		}
		return releaseName && r == '.'
	})
}

func isNoiseToken(token string, releaseName bool) bool {
	lower := strings.ToLower(token)
	if head, _, found := strings.Cut(lower, "-"); found && head != "" {
		if isNoiseWord(head, releaseName) {
			return true
		}
		lower = strings.ReplaceAll(lower, "-", "")
	}
	return isNoiseWord(lower, releaseName)
}

func isNoiseWord(word string, releaseName bool) bool {
	if _, ok := strongNoise[word]; ok {
		return true
	}
	if releaseName {
		_, ok := weakNoise[word]
		return ok
	}
	return false
}

func plausibleYear(token string) (int, bool) {
	if len(token) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	if year < 1888 || year > time.Now().Year()+1 {
		return 0, false
	}
	return year, true
}
