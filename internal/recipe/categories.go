package recipe

// categoryKeywords maps ingredient words to grocery aisles. Earlier entries
// win.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"frozen", []string{"frozen"}},
	{"pantry", []string{"peanut butter", "coconut milk", "almond milk", "soy sauce"}},
	{"seafood", []string{"salmon", "tuna", "cod", "shrimp", "prawn", "fish", "mussel", "crab", "squid", "sardine", "anchovy"}},
	{"meat", []string{"chicken", "beef", "pork", "lamb", "turkey", "bacon", "ham", "sausage", "mince", "steak", "chorizo"}},
	{"dairy", []string{"milk", "cheese", "butter", "yogurt", "yoghurt", "cream", "egg", "feta", "parmesan", "mozzarella", "ricotta"}},
	{"bakery", []string{"bread", "tortilla", "pita", "bagel", "bun", "wrap", "baguette"}},
	{"spices", []string{"salt", "black pepper", "cumin", "paprika", "oregano", "cinnamon", "turmeric", "chili", "basil", "thyme", "rosemary", "nutmeg", "coriander"}},
	{"produce", []string{"tomato", "onion", "garlic", "potato", "carrot", "lettuce", "spinach", "apple", "banana", "lemon", "lime", "pepper", "avocado", "cucumber", "broccoli", "mushroom", "zucchini", "berry", "kale", "ginger", "celery", "parsley", "cilantro", "herb"}},
	{"pantry", []string{"flour", "sugar", "rice", "pasta", "oat", "oil", "vinegar", "bean", "lentil", "chickpea", "noodle", "quinoa", "honey", "stock", "broth", "sauce", "nut", "almond", "peanut", "seed", "couscous", "cornstarch"}},
}

// GuessCategory returns a grocery category for an ingredient name, or ""
// when no keyword matches.
func GuessCategory(name string) string {
	ws := words(name)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.words {
			if containsSequence(ws, words(kw)) {
				return entry.category
			}
		}
	}
	return ""
}
