package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Customer owns orders, invoices, and payments.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:"name" json:"name"`
	Email     string    `bun:"email" json:"email"`
	Phone     string    `bun:"phone" json:"phone"`
	Address   string    `bun:"address" json:"address"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Visit records a sales-person call on a customer; feeds the daily-visits
// dashboard figure.
type Visit struct {
	bun.BaseModel `bun:"table:visits"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	UserID     int64     `bun:"user_id" json:"user_id"`
	CustomerID int64     `bun:"customer_id" json:"customer_id"`
	VisitedAt  time.Time `bun:"visited_at" json:"visited_at"`
	Notes      string    `bun:"notes" json:"notes"`
}
