package handlers

import "strings"

// Style and room tables. These drive both the prompt sent to the
// generation endpoint and the per-room style gate; unknown keys fall back
// to generic phrasing instead of failing.

var styleAliases = map[string]string{
	"countryside": "country",
	"minimalist":  "minimal",
}

var roomLabels = map[string]string{
	"room":    "room",
	"living":  "living room",
	"office":  "home office",
	"dining":  "dining room",
	"kitchen": "kitchen",
}

var styleHints = map[string]string{
	"modern":               "clean lines, minimalist forms, neutral palette, matte finishes, subtle lighting",
	"cozy":                 "warm tones, soft textures, layered textiles, ambient lighting, inviting atmosphere",
	"scandinavian":         "light woods, airy feel, functional simplicity, white walls, natural light",
	"minimal":              "reduced visual noise, essential shapes, ample negative space, neutral colors",
	"coastal":              "light palette, breezy textures, natural fibers, ocean-inspired accents",
	"loft":                 "open plan, industrial touches, exposed materials, large windows",
	"retro":                "mid-century influence, nostalgic colors, rounded forms, playful accents",
	"contemporary":         "sleek profiles, refined finishes, modern fixtures, balanced contrast",
	"industrial":           "raw materials, metal and concrete, utilitarian fixtures, bold silhouettes",
	"executive":            "premium materials, sophisticated palette, statement furniture, polished look",
	"open-plan":            "flexible layout, collaborative zones, airy circulation, cohesive materials",
	"rustic":               "natural wood, stone textures, handcrafted feel, earthy palette, rugged charm",
	"classic":              "timeless detailing, balanced symmetry, elegant finishes, crown moldings",
	"bohemian":             "eclectic patterns, layered textiles, plants, collected objects, vibrant accents",
	"country":              "countryside charm, shaker profiles, warm woods, vintage details, natural elements",
	"mediterranean":        "terracotta, stone, arches, warm whites, wrought iron, sunlit ambience",
	"contemporary_kitchen": "flat fronts, integrated pulls, quartz counters, under-cabinet lights",
}

var roomContexts = map[string]string{
	"room":    "Maintain the existing room geometry and perspective.",
	"living":  "Keep windows, seating layout, and focal wall positions consistent.",
	"office":  "Preserve desk position, circulation, and daylight direction for a working space.",
	"dining":  "Respect table location, circulation space, and wall positions.",
	"kitchen": "Keep cabinet layout, appliance positions, and work triangle intact.",
}

// stylesByRoom is the per-room whitelist behind the style gate: a submit
// is rejected until the chosen style appears under the chosen room type.
var stylesByRoom = map[string][]string{
	"room":    {"modern", "cozy", "scandinavian", "minimal"},
	"living":  {"modern", "coastal", "loft", "retro"},
	"office":  {"contemporary", "industrial", "executive", "open-plan"},
	"dining":  {"rustic", "modern", "classic", "bohemian"},
	"kitchen": {"modern", "country", "industrial", "mediterranean"},
}

var allowedAspectRatios = map[string]bool{
	"original": true,
	"1:1":      true,
	"16:9":     true,
	"4:5":      true,
	"9:16":     true,
}

func styleAllowedForRoom(room, style string) bool {
	for _, s := range stylesByRoom[room] {
		if s == style {
			return true
		}
	}
	return false
}

// buildPrompt assembles the instruction string sent to the generation
// endpoint. It is deterministic for a given (room, style) pair and never
// shown in the UI.
func buildPrompt(room, style string) string {
	normalized := style
	if alias, ok := styleAliases[style]; ok {
		normalized = alias
	}

	roomLabel := roomLabels[room]
	if roomLabel == "" {
		roomLabel = room
	}

	styleLabel := "refined"
	if normalized != "" {
		styleLabel = strings.ReplaceAll(normalized, "-", " ")
	}

	styleDetail := "harmonious, realistic interior styling"
	if hint, ok := styleHints[normalized]; ok && normalized != "" {
		styleDetail = hint
	}

	context := roomContexts[room]
	if context == "" {
		context = "Maintain the current room geometry and perspective."
	}

	return strings.Join([]string{
		"Transform the uploaded " + roomLabel + " photo into a " + styleLabel + " style real-estate image with realistic results.",
		"Apply: " + styleDetail + ".",
		context,
		"Do not change room size or camera angle. Keep doors/windows and architecture in place.",
		"Use photorealistic lighting and materials. No text overlays. 16:9 aspect if possible.",
	}, " ")
}
