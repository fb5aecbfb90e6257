package vision

import "strings"

// Category is a trash material class.
type Category string

const (
	Plastic    Category = "plastic"
	Paper      Category = "paper"
	Glass      Category = "glass"
	Metal      Category = "metal"
	Organic    Category = "organic"
	Electronic Category = "electronic"
	Other      Category = "other"
)

// categoryOrder is the precedence used when a name matches several classes.
var categoryOrder = []Category{Plastic, Paper, Glass, Metal, Organic, Electronic, Other}

var categoryItems = map[Category][]string{
	Plastic: {
		"bottle", "plastic bottle", "water bottle", "soda bottle", "plastic bag",
		"shopping bag", "plastic container", "food container", "takeout container",
		"plastic cup", "disposable cup", "plastic utensils", "straw", "plastic wrapper",
		"plastic packaging", "tupperware", "yogurt container", "milk jug", "plastic",
	},
	Paper: {
		"paper", "newspaper", "magazine", "cardboard", "box", "cardboard box",
		"paper bag", "paper cup", "coffee cup", "paper plate", "napkin", "tissue",
		"paper towel", "receipt", "flyer", "brochure", "book", "paper wrapper",
		"pizza box", "cereal box", "package", "packaging", "envelope",
	},
	Glass: {
		"glass", "glass bottle", "beer bottle", "wine bottle", "jar", "glass jar",
		"glass container", "broken glass", "glass cup", "drinking glass", "window",
		"mirror",
	},
	Metal: {
		"can", "aluminum can", "soda can", "beer can", "tin can", "food can",
		"metal container", "metal lid", "bottle cap", "foil", "aluminum foil",
		"metal", "steel", "iron", "copper", "scrap metal",
	},
	Organic: {
		"food", "food waste", "fruit", "vegetable", "apple", "banana", "orange",
		"leaf", "leaves", "branch", "stick", "organic waste", "compost",
		"garden waste", "yard waste", "grass", "flower", "plant", "tree debris",
		"food scraps",
	},
	Electronic: {
		"electronics", "electronic", "phone", "mobile phone", "smartphone",
		"computer", "laptop", "tablet", "television", "tv", "monitor", "keyboard",
		"mouse", "cable", "wire", "battery", "charger", "headphones", "speaker",
		"radio", "camera", "electronic device", "circuit board",
	},
	Other: {
		"waste", "debris", "litter", "trash", "garbage", "rubber", "tire", "fabric",
		"clothing", "shoe", "cigarette", "cigarette butt", "stub", "lighter", "toy",
		"furniture", "wood", "ceramic", "porcelain", "styrofoam", "foam",
		"miscellaneous", "unknown object",
	},
}

// labelTerms count a label as trash even when no item name matches.
var labelTerms = []string{"waste", "litter", "debris", "trash", "garbage"}

// Classify returns the first category whose item list matches name by
// case-insensitive substring, and false when none does.
func Classify(name string) (Category, bool) {
	n := strings.ToLower(name)
	if n == "" {
		return "", false
	}
	for _, c := range categoryOrder {
		if containsAny(n, categoryItems[c]) {
			return c, true
		}
	}
	return "", false
}

// IsTrash reports whether an object name matches any trash item.
func IsTrash(name string) bool {
	_, ok := Classify(name)
	return ok
}

// IsTrashLabel reports whether a label description matches a trash item or
// one of the generic waste terms.
func IsTrashLabel(description string) bool {
	d := strings.ToLower(description)
	if d == "" {
		return false
	}
	return IsTrash(d) || containsAny(d, labelTerms)
}

func containsAny(s string, items []string) bool {
	for _, item := range items {
		if strings.Contains(s, item) {
			return true
		}
	}
	return false
}
