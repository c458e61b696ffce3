package keymap

import "github.com/peterjc/kana-chording-ke/internal/ir"

// Key positions as printed on a JIS MacBook: number row (13), top row (12),
// home row (12), bottom row (11).
const jisQwerty = "1234567890-^¥" +
	"qwertyuiop@[" +
	"asdfghjkl;:]" +
	"zxcvbnm,./_"

// Host key_code names for JIS keys that are not their own character.
var jisKeyNames = map[rune]string{
	'¥': "international3",
	'_': "international1",
	'@': "open_bracket",
	'[': "close_bracket",
	']': "backslash",
	'-': "hyphen",
	'^': "equal_sign",
	';': "semicolon",
	':': "quote",
	',': "comma",
	'.': "period",
	'/': "slash",
}

// kanaBoard is what the IME in kana typing mode produces for each JIS key.
// Option layers give wide ASCII, so digits and symbols can be typed without
// leaving kana mode.
var kanaBoard = newBoard(jisQwerty, jisKeyNames,
	mkLayer("ぬふあうえおやゆよわほへー"+
		"たていすかんなにらせ゛゜"+
		"ちとしはきくまのりれけむ"+
		"つさそひこみもねるめろ"),
	mkLayer("❌❌ぁぅぇぉゃゅょを❌❌❌"+
		"❌❌ぃ❌❌❌❌❌❌❌❌「"+
		"❌❌❌❌❌❌❌❌❌❌❌」"+
		"っ❌❌❌❌❌❌、。・❌", "shift"),
	mkLayer("１２３４５６７８９０－＾￥"+
		"ｑｗｅｒｔｙｕｉｏｐ＠［"+
		"ａｓｄｆｇｈｊｋｌ；：］"+
		"ｚｘｃｖｂｎｍ、。・＿", "fn", "option"),
	mkLayer("！＂＃＄％＆＇（）０＝〜｜"+
		"ＱＷＥ❌ＴＹＵＩＯＰ｀｛"+
		"❌❌ＤＦＧＨＪＫＬ＋＊｝"+
		"❌❌❌ＶＢＮＭ＜＞？＿", "shift", "option"),
)

// ansiISOKana replaces strokes on JIS-only keys (international1,
// international3) and on punctuation keys that move between JIS and
// ANSI/ISO.
var ansiISOKana = map[rune]ir.KeyStroke{
	'ろ': {Code: "quote", Modifiers: []string{"shift"}},
	'゜': {Code: "equal_sign"},
	'「': {Code: "equal_sign", Modifiers: []string{"shift"}},
	'」': {Code: "open_bracket", Modifiers: []string{"shift"}},
	'ー': {Code: "hyphen", Modifiers: []string{"option"}},
	'＿': {Code: "hyphen", Modifiers: []string{"shift", "option"}},
	'￥': {Code: "non_us_pound", Modifiers: []string{"option"}},
	'｜': {Code: "non_us_pound", Modifiers: []string{"shift", "option"}},
	'〜': {Code: "non_us_backslash", Modifiers: []string{"shift"}},
}

func kanaStroke(v ir.KeyboardVariant, r rune) (ir.KeyStroke, bool) {
	if v != ir.VariantJIS {
		if s, ok := ansiISOKana[r]; ok {
			return s, true
		}
	}
	return kanaBoard.stroke(r)
}
