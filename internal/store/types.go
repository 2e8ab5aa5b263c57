package store

// Product is one sellable item in the catalog.
type Product struct {
	ID          string   `json:"id"`
	ModelNumber string   `json:"modelNumber"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	ImageURL    string   `json:"imageUrl"`
}

// Recipe is a preparation users can make with catalog products.
type Recipe struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Ingredients []string `json:"ingredients"`
	UseCases    []string `json:"useCases"`
	PrepMinutes int      `json:"prepMinutes"`
	ImageURL    string   `json:"imageUrl"`
}

// UseCase groups products and recipes around a usage scenario.
type UseCase struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	ProductIDs  []string `json:"productIds"`
	RecipeIDs   []string `json:"recipeIds"`
}

// Persona is a buyer profile with recommended products.
type Persona struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Signals             []string `json:"signals"`
	RecommendedProducts []string `json:"recommendedProducts"`
}

// Review is a curated testimonial tied to a product.
type Review struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Author    string  `json:"author"`
	Rating    float64 `json:"rating"`
	Text      string  `json:"text"`
}

// FAQ is one question/answer pair.
type FAQ struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
}

// Accessory is an add-on compatible with one or more products.
type Accessory struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Price              float64  `json:"price"`
	CompatibleProducts []string `json:"compatibleProducts"`
}

// PlaceholderImage marks an entry with no real product photography.
// Retrieval prefers entries with non-placeholder images.
const PlaceholderImage = "/images/placeholder.png"
