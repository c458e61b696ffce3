package keymap

const usQwerty = "`1234567890-=" +
	"qwertyuiop[]\\" +
	"asdfghjkl;'" +
	"zxcvbnm,./"

var usKeyNames = map[rune]string{
	'`':  "grave_accent_and_tilde",
	'-':  "hyphen",
	'=':  "equal_sign",
	'[':  "open_bracket",
	']':  "close_bracket",
	'\\': "backslash",
	';':  "semicolon",
	'\'': "quote",
	',':  "comma",
	'.':  "period",
	'/':  "slash",
}

// asciiJIS types ASCII on a JIS keyboard. Shift+0 has no character on JIS;
// the unshifted layer is searched first so the placeholder never matches.
var asciiJIS = newBoard(jisQwerty, jisKeyNames,
	mkLayer(jisQwerty),
	mkLayer("!\"#$%&'()0=~|"+
		"QWERTYUIOP`{"+
		"ASDFGHJKL+*}"+
		"ZXCVBNM<>?_", "shift"),
)

// asciiUS types ASCII on ANSI and ISO keyboards, where the host names keys
// by their US position.
var asciiUS = newBoard(usQwerty, usKeyNames,
	mkLayer(usQwerty),
	mkLayer("~!@#$%^&*()_+"+
		"QWERTYUIOP{}|"+
		"ASDFGHJKL:\""+
		"ZXCVBNM<>?", "shift"),
)
