package domain

import "time"

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "AVAILABLE"
	ItemStatusOnBorrow  ItemStatus = "ON_BORROW"
	ItemStatusReserved  ItemStatus = "RESERVED"
	ItemStatusLost      ItemStatus = "LOST"
	ItemStatusRetired   ItemStatus = "RETIRED"
)

type ItemCondition string

const (
	ItemConditionNew     ItemCondition = "NEW"
	ItemConditionGood    ItemCondition = "GOOD"
	ItemConditionWorn    ItemCondition = "WORN"
	ItemConditionDamaged ItemCondition = "DAMAGED"
	ItemConditionLost    ItemCondition = "LOST"
)

// Valid reports whether c is one of the known conditions.
func (c ItemCondition) Valid() bool {
	switch c {
	case ItemConditionNew, ItemConditionGood, ItemConditionWorn, ItemConditionDamaged, ItemConditionLost:
		return true
	}
	return false
}

// StatusAfterReturn maps the condition an item came back in to the status it
// is left in once a violation has been recorded against it.
func (c ItemCondition) StatusAfterReturn() ItemStatus {
	switch c {
	case ItemConditionLost:
		return ItemStatusLost
	case ItemConditionDamaged:
		return ItemStatusRetired
	default:
		return ItemStatusAvailable
	}
}

type Book struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	AuthorName string `json:"authorName"`
	ISBN       string `json:"isbn,omitempty"`
	Ebook      *Ebook `json:"ebook,omitempty"` // Populated when the book has an electronic edition
}

// Ebook is the electronic edition of a book. Supply is not scarce, so ebook
// loans never go through the hold queue.
type Ebook struct {
	ID     int64  `json:"id"`
	BookID int64  `json:"bookId"`
	Format string `json:"format"`
}

// BookItem is one physical copy of a book and the unit of allocation.
type BookItem struct {
	ID        int64         `json:"id"`
	BookID    int64         `json:"bookId"`
	Book      *Book         `json:"book,omitempty"`
	Code      string        `json:"code"`
	Status    ItemStatus    `json:"status"`
	Condition ItemCondition `json:"condition"`
	CreatedAt time.Time     `json:"createdAt"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty"`
}

func (i BookItem) IsDeleted() bool { return i.DeletedAt != nil }
