package contract

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Ingredient is one ERC-1155 token id in the pantry.
type Ingredient struct {
	ID   int64
	Name string
}

var Ingredients = []Ingredient{
	{1, "Egg"},
	{2, "Cheese"},
	{3, "Bacon"},
}

// IngredientByName resolves "egg", "Egg" or "1".
func IngredientByName(name string) (Ingredient, bool) {
	name = strings.TrimSpace(name)
	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		for _, in := range Ingredients {
			if in.ID == id {
				return in, true
			}
		}
		return Ingredient{}, false
	}
	for _, in := range Ingredients {
		if strings.EqualFold(in.Name, name) {
			return in, true
		}
	}
	return Ingredient{}, false
}

// IngredientName returns the display name for an id.
func IngredientName(id int64) string {
	for _, in := range Ingredients {
		if in.ID == id {
			return in.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

// Basket maps ingredient id to amount.
type Basket map[int64]int64

// ParseBasket parses "egg=2 cheese=1" style arguments. Repeated names add up;
// zero amounts are dropped.
func ParseBasket(args []string) (Basket, error) {
	b := Basket{}
	for _, arg := range args {
		name, qty, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=amount, got %q", arg)
		}
		in, found := IngredientByName(name)
		if !found {
			return nil, fmt.Errorf("unknown ingredient %q", name)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(qty), 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid amount %q for %s", qty, in.Name)
		}
		if n > 0 {
			b[in.ID] += n
		}
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty order")
	}
	return b, nil
}

// IDs returns the ingredient ids in ascending order.
func (b Basket) IDs() []int64 {
	ids := make([]int64, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Arrays returns parallel id/amount arrays for buyBatch and cook.
func (b Basket) Arrays() (ids, amounts []*big.Int) {
	for _, id := range b.IDs() {
		ids = append(ids, big.NewInt(id))
		amounts = append(amounts, big.NewInt(b[id]))
	}
	return ids, amounts
}

// Total is the number of items across all ingredients.
func (b Basket) Total() int64 {
	var n int64
	for _, v := range b {
		n += v
	}
	return n
}

// Cost is price per ingredient times the total item count.
func (b Basket) Cost(price *big.Int) *big.Int {
	return new(big.Int).Mul(price, big.NewInt(b.Total()))
}

func (b Basket) String() string {
	parts := make([]string, 0, len(b))
	for _, id := range b.IDs() {
		parts = append(parts, fmt.Sprintf("%d× %s", b[id], IngredientName(id)))
	}
	return strings.Join(parts, ", ")
}

// Recipe is a known dish and the exact ingredients it burns.
type Recipe struct {
	ID          string
	Name        string
	Description string
	Needs       Basket
}

var Recipes = []Recipe{
	{"scrambled-eggs", "Scrambled Eggs", "Simple and delicious", Basket{1: 2}},
	{"cheese-omelette", "Cheese Omelette", "Fluffy and cheesy", Basket{1: 2, 2: 1}},
	{"breakfast-special", "Breakfast Special", "The complete breakfast", Basket{1: 2, 2: 1, 3: 1}},
}

// RecipeByName matches a recipe by id or case-insensitive name.
func RecipeByName(name string) (Recipe, bool) {
	name = strings.TrimSpace(name)
	for _, r := range Recipes {
		if r.ID == name || strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Recipe{}, false
}

// MatchRecipe finds the recipe whose ingredients equal b exactly.
func MatchRecipe(b Basket) (Recipe, bool) {
	for _, r := range Recipes {
		if len(r.Needs) != len(b) {
			continue
		}
		match := true
		for id, n := range r.Needs {
			if b[id] != n {
				match = false
				break
			}
		}
		if match {
			return r, true
		}
	}
	return Recipe{}, false
}

// Missing lists ingredients for which have falls short of the recipe.
func (r Recipe) Missing(have map[int64]*big.Int) Basket {
	short := Basket{}
	for id, n := range r.Needs {
		got := have[id]
		if got == nil || got.Cmp(big.NewInt(n)) < 0 {
			var g int64
			if got != nil {
				g = got.Int64()
			}
			short[id] = n - g
		}
	}
	return short
}
