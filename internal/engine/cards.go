package engine

type Category string

const (
	CategoryAttack  Category = "attack"
	CategoryDefense Category = "defense"
	CategoryHeal    Category = "heal"
)

type Card struct {
	ID       int
	Category Category
	// Value is damage for attacks, block for defenses and hp restored for heals.
	Value int
}

var cardTable = map[int]Card{
	101: {ID: 101, Category: CategoryAttack, Value: 2},
	102: {ID: 102, Category: CategoryAttack, Value: 3},
	201: {ID: 201, Category: CategoryDefense, Value: 2},
	202: {ID: 202, Category: CategoryDefense, Value: 3},
	301: {ID: 301, Category: CategoryHeal, Value: 2},
}

// DeckComposition is the card list every player's deck is built from.
var DeckComposition = []int{101, 101, 102, 102, 201, 202, 301, 301}

func LookupCard(id int) (Card, bool) {
	c, ok := cardTable[id]
	return c, ok
}

func isDefenseCard(id int) bool {
	c, ok := cardTable[id]
	return ok && c.Category == CategoryDefense
}
