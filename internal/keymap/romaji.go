package keymap

import (
	"maps"
	"strings"
)

// romajiSpelling maps hiragana to the spelling typed in romaji mode. Where
// several spellings work the common Hepburn one is used (shi, chi, tsu, fu,
// ji); small kana use the x prefix.
var romajiSpelling = buildRomaji()

var gojuon = []struct {
	prefix string
	kana   string // one kana per vowel a i u e o, ❌ for gaps
}{
	{"", "あいうえお"},
	{"x", "ぁぃぅぇぉ"},
	{"k", "かきくけこ"},
	{"g", "がぎぐげご"},
	{"s", "さしすせそ"},
	{"z", "ざじずぜぞ"},
	{"t", "たちつてと"},
	{"d", "だぢづでど"},
	{"n", "なにぬねの"},
	{"h", "はひふへほ"},
	{"b", "ばびぶべぼ"},
	{"p", "ぱぴぷぺぽ"},
	{"m", "まみむめも"},
	{"y", "や❌ゆ❌よ"},
	{"xy", "ゃ❌ゅ❌ょ"},
	{"r", "らりるれろ"},
	{"w", "わゐ❌ゑを"},
	{"xw", "ゎ❌❌❌❌"},
}

var romajiExceptions = map[string]string{
	"si": "shi",
	"zi": "ji",
	"ti": "chi",
	"tu": "tsu",
	"hu": "fu",
	"wi": "wyi",
	"we": "wye",
}

var romajiExtra = map[rune]string{
	'っ': "xtsu",
	'ん': "nn",
	'ゔ': "vu",
	'ゕ': "xka",
	'ゖ': "xke",
	'ー': "-",
	'、': ",",
	'。': ".",
	'「': "[",
	'」': "]",
	'・': "/",
	'〜': "~",
	'\u3000': " ",
}

func buildRomaji() map[rune]string {
	out := make(map[rune]string)
	for _, row := range gojuon {
		for i, k := range []rune(row.kana) {
			if string(k) == "❌" {
				continue
			}
			spelling := row.prefix + string("aiueo"[i])
			if ex, ok := romajiExceptions[spelling]; ok {
				spelling = ex
			}
			out[k] = spelling
		}
	}
	maps.Copy(out, romajiExtra)
	return out
}

// spellRomaji converts text to the ASCII typed in romaji mode. Wide ASCII
// has already been narrowed by the caller.
func spellRomaji(text string) (string, rune, bool) {
	var sb strings.Builder
	for _, r := range text {
		if r < 0x80 {
			sb.WriteRune(r)
			continue
		}
		spelling, ok := romajiSpelling[r]
		if !ok {
			return "", r, false
		}
		sb.WriteString(spelling)
	}
	return sb.String(), 0, true
}
