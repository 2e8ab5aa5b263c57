package store

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed data/*.json
var seedFS embed.FS

// Store holds the read-only content collections. Loaded once per process;
// safe for concurrent reads without synchronization afterwards.
type Store struct {
	Products    []Product
	Recipes     []Recipe
	UseCases    []UseCase
	Personas    []Persona
	Reviews     []Review
	FAQs        []FAQ
	Accessories []Accessory

	productByID map[string]*Product
	recipeByID  map[string]*Recipe
	useCaseByID map[string]*UseCase
}

var (
	loadOnce sync.Once
	loaded   *Store
	loadErr  error
)

// Load returns the process-wide store, reading the embedded seed data on
// first call.
func Load() (*Store, error) {
	loadOnce.Do(func() {
		loaded, loadErr = loadFrom(seedFS)
	})
	return loaded, loadErr
}

func loadFrom(fs embed.FS) (*Store, error) {
	s := &Store{}
	files := map[string]any{
		"data/products.json":    &s.Products,
		"data/recipes.json":     &s.Recipes,
		"data/usecases.json":    &s.UseCases,
		"data/personas.json":    &s.Personas,
		"data/reviews.json":     &s.Reviews,
		"data/faqs.json":        &s.FAQs,
		"data/accessories.json": &s.Accessories,
	}
	for name, dst := range files {
		b, err := fs.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("store: read %s: %w", name, err)
		}
		if err := json.Unmarshal(b, dst); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", name, err)
		}
	}
	s.index()
	return s, nil
}

func (s *Store) index() {
	s.productByID = make(map[string]*Product, len(s.Products))
	for i := range s.Products {
		s.productByID[s.Products[i].ID] = &s.Products[i]
	}
	s.recipeByID = make(map[string]*Recipe, len(s.Recipes))
	for i := range s.Recipes {
		s.recipeByID[s.Recipes[i].ID] = &s.Recipes[i]
	}
	s.useCaseByID = make(map[string]*UseCase, len(s.UseCases))
	for i := range s.UseCases {
		s.useCaseByID[s.UseCases[i].ID] = &s.UseCases[i]
	}
}

// ProductByID returns the product with the given id, if present.
func (s *Store) ProductByID(id string) (Product, bool) {
	p, ok := s.productByID[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

// ProductByModelNumber matches a model number case-insensitively.
func (s *Store) ProductByModelNumber(model string) (Product, bool) {
	model = strings.ToUpper(strings.TrimSpace(model))
	for _, p := range s.Products {
		if strings.ToUpper(p.ModelNumber) == model {
			return p, true
		}
	}
	return Product{}, false
}

// RecipeByID returns the recipe with the given id, if present.
func (s *Store) RecipeByID(id string) (Recipe, bool) {
	r, ok := s.recipeByID[id]
	if !ok {
		return Recipe{}, false
	}
	return *r, true
}

// UseCaseByID returns the use case with the given id, if present.
func (s *Store) UseCaseByID(id string) (UseCase, bool) {
	u, ok := s.useCaseByID[id]
	if !ok {
		return UseCase{}, false
	}
	return *u, true
}

// SearchProducts returns products whose name, description, or features
// contain the term, case-insensitively, in store order.
func (s *Store) SearchProducts(term string) []Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []Product
	for _, p := range s.Products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Description), term) {
			out = append(out, p)
			continue
		}
		for _, f := range p.Features {
			if strings.Contains(strings.ToLower(f), term) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// ReviewsForProduct returns curated reviews for one product.
func (s *Store) ReviewsForProduct(productID string) []Review {
	var out []Review
	for _, r := range s.Reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out
}

// AccessoriesForProduct returns accessories compatible with the product.
func (s *Store) AccessoriesForProduct(productID string) []Accessory {
	var out []Accessory
	for _, a := range s.Accessories {
		for _, id := range a.CompatibleProducts {
			if id == productID {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Counts reports collection sizes for health reporting.
func (s *Store) Counts() map[string]int {
	return map[string]int{
		"products":    len(s.Products),
		"recipes":     len(s.Recipes),
		"useCases":    len(s.UseCases),
		"personas":    len(s.Personas),
		"reviews":     len(s.Reviews),
		"faqs":        len(s.FAQs),
		"accessories": len(s.Accessories),
	}
}
