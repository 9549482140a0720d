package classify

import "regexp"

const SentinelCategory = "surprise"

type keywordRule struct {
	category string
	pattern  *regexp.Regexp
}

// Evaluated in order; every matching rule contributes its category.
var keywordRules = []keywordRule{
	{"world-wars", regexp.MustCompile(`\b(wars?|battles?|invasion|invades?|armistice|siege|troops|army|navy|bombing|blitz)\b`)},
	{"inventions", regexp.MustCompile(`\b(invent\w*|patent\w*|prototype|telegraph|telephone|first (successful|commercial|practical))\b`)},
	{"natural-disasters", regexp.MustCompile(`\b(earthquakes?|volcan\w*|eruptions?|erupts?|tsunamis?|hurricanes?|typhoons?|cyclones?|floods?|flooding|tornado\w*|wildfires?|avalanche)\b`)},
	{"space-exploration", regexp.MustCompile(`\b(space\w*|satellites?|orbit\w*|astronauts?|cosmonauts?|moon|lunar|rockets?|nasa|apollo|mars)\b`)},
	{"politics", regexp.MustCompile(`\b(elect\w*|president\w*|prime minister|parliament\w*|independence|treaty|constitution\w*|revolution\w*|coup|monarch\w*|crowned|empire)\b`)},
	{"science", regexp.MustCompile(`\b(scien\w*|discover\w*|theory|physic\w*|chemist\w*|vaccines?|experiments?|element)\b`)},
	{"art-culture", regexp.MustCompile(`\b(films?|novels?|paint\w*|opera|symphony|albums?|premieres?|premiered|museum|published|theat(re|er)|poem)\b`)},
	{"sports", regexp.MustCompile(`\b(olympic\w*|world cup|championships?|tournament|football|baseball|cricket|marathon|grand prix)\b`)},
	{"tragedies", regexp.MustCompile(`\b(disasters?|massacre\w*|assassinat\w*|crash\w*|sank|sinks|sinking|explosion|killed|terroris\w*|fire)\b`)},
	{"exploration", regexp.MustCompile(`\b(expedition\w*|explorers?|circumnavigat\w*|voyage|first to reach|summit)\b`)},
	{"religion", regexp.MustCompile(`\b(pope|church|cathedral|religio\w*|saint|bishop|monaster\w*|canoniz\w*)\b`)},
}

// Knowledge-graph type ids mapped to categories.
var entityCategories = map[string]string{
	"Q198":      "world-wars",
	"Q178561":   "world-wars",
	"Q361":      "world-wars",
	"Q362":      "world-wars",
	"Q1371819":  "inventions",
	"Q7944":     "natural-disasters",
	"Q8065":     "natural-disasters",
	"Q8070":     "natural-disasters",
	"Q8072":     "natural-disasters",
	"Q495307":   "space-exploration",
	"Q5916":     "space-exploration",
	"Q40218":    "space-exploration",
	"Q26540":    "space-exploration",
	"Q40231":    "politics",
	"Q131569":   "politics",
	"Q10931":    "politics",
	"Q11424":    "art-culture",
	"Q7725634":  "art-culture",
	"Q3305213":  "art-culture",
	"Q482994":   "art-culture",
	"Q16510064": "sports",
	"Q3839081":  "tragedies",
	"Q2223653":  "exploration",
}

// Knowledge-graph type ids mapped to free-form tags.
var entityTags = map[string]string{
	"Q5":        "people",
	"Q515":      "places",
	"Q6256":     "places",
	"Q198":      "military",
	"Q178561":   "military",
	"Q1371819":  "technology",
	"Q495307":   "spaceflight",
	"Q5916":     "spaceflight",
	"Q11424":    "film",
	"Q7725634":  "literature",
	"Q482994":   "music",
	"Q3305213":  "painting",
	"Q16510064": "sport-event",
}
