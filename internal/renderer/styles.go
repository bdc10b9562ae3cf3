package renderer

// stylePreset overrides scene colors. An empty background defers to the
// scene's own background_color.
type stylePreset struct {
	Background string
	Text       string
	Math       string
	Primary    string
}

var stylePresets = map[string]stylePreset{
	"default": {
		Text:    "#ffffff",
		Math:    "#ffffff",
		Primary: "#ffffff",
	},
	"cyberpunk": {
		Background: "#050510",
		Text:       "#00ff9f",
		Math:       "#ff0055",
		Primary:    "#00dbff",
	},
	"chalkboard": {
		Background: "#2b3d2b",
		Text:       "#eeeeee",
		Math:       "#dddddd",
		Primary:    "#ffffff",
	},
	"light": {
		Background: "#ffffff",
		Text:       "#000000",
		Math:       "#000000",
		Primary:    "#000000",
	},
}

func presetFor(style string) stylePreset {
	if p, ok := stylePresets[style]; ok {
		return p
	}
	return stylePresets["default"]
}
