package intent

// Type is the classified purpose of a user query. Special categories change
// downstream tone and must be checked before the generic ones.
type Type string

const (
	TypeDiscovery     Type = "discovery"
	TypeComparison    Type = "comparison"
	TypeUseCase       Type = "use-case"
	TypeProductDetail Type = "product-detail"
	TypePurchase      Type = "purchase"
	TypeSupport       Type = "support"
	TypeGift          Type = "gift"
	TypeMedical       Type = "medical"
	TypeAccessibility Type = "accessibility"
	TypePartnership   Type = "partnership"
)

// JourneyStage places the user in the decision funnel.
type JourneyStage string

const (
	StageExploring JourneyStage = "exploring"
	StageComparing JourneyStage = "comparing"
	StageDeciding  JourneyStage = "deciding"
)

// Entities are the concrete things the query mentions.
type Entities struct {
	Products    []string `json:"products"`
	UseCases    []string `json:"useCases"`
	Features    []string `json:"features"`
	Ingredients []string `json:"ingredients,omitempty"`
	PriceRange  string   `json:"priceRange,omitempty"`
}

// Classification is the classifier's output. Immutable once produced.
type Classification struct {
	IntentType   Type         `json:"intentType"`
	Confidence   float64      `json:"confidence"`
	Entities     Entities     `json:"entities"`
	JourneyStage JourneyStage `json:"journeyStage"`
}

// HistoryItem is the slice of session history the classifier consults.
type HistoryItem struct {
	Query      string `json:"query"`
	IntentType string `json:"intent"`
}

var knownTypes = map[Type]bool{
	TypeDiscovery: true, TypeComparison: true, TypeUseCase: true,
	TypeProductDetail: true, TypePurchase: true, TypeSupport: true,
	TypeGift: true, TypeMedical: true, TypeAccessibility: true,
	TypePartnership: true,
}

// Normalize clamps a classification into valid ranges so downstream stages
// never see out-of-domain values even from a misbehaving model.
func Normalize(c Classification) Classification {
	if !knownTypes[c.IntentType] {
		c.IntentType = TypeDiscovery
	}
	switch c.JourneyStage {
	case StageExploring, StageComparing, StageDeciding:
	default:
		c.JourneyStage = StageExploring
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return c
}

// Default is the static fallback used whenever classification fails.
func Default() Classification {
	return Classification{
		IntentType:   TypeDiscovery,
		Confidence:   0.5,
		Entities:     Entities{Products: []string{}, UseCases: []string{}, Features: []string{}},
		JourneyStage: StageExploring,
	}
}
