package notes

// Category is the product family a note belongs to. It is also the note's directory name.
type Category string

const (
	CategoryCigars     Category = "cigars"
	CategoryCigarettes Category = "cigarettes"
	CategoryPipe       Category = "pipe"
	CategoryRYO        Category = "ryo"
	CategorySnus       Category = "snus"
	CategoryECig       Category = "ecig"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryCigars,
	CategoryCigarettes,
	CategoryPipe,
	CategoryRYO,
	CategorySnus,
	CategoryECig,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }
