package models

import "time"

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

type MembershipRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=200"`
	Password string `json:"password" binding:"required,min=8"`
	Tier     string `json:"tier" binding:"required,oneof=student standard patron"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type Member struct {
	ID              int       `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Tier            string    `json:"tier"`
	Status          string    `json:"status"`
	PaymentIntentID string    `json:"-"`
	HashedPassword  []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type TicketRequest struct {
	ScreeningID string `json:"screeningId" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1,max=10"`
	Email       string `json:"email" binding:"required,email"`
	Name        string `json:"name" binding:"required,max=200"`
}

type Ticket struct {
	ID              string    `json:"id"`
	ScreeningID     string    `json:"screeningId"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	AmountPence     int64     `json:"amount"`
	Status          string    `json:"status"`
	PaymentIntentID string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// CheckoutResponse is returned to the signup and ticket forms so they can
// confirm the payment client-side.
type CheckoutResponse struct {
	ClientSecret string   `json:"clientSecret"`
	Amount       int64    `json:"amount"`
	Currency     string   `json:"currency"`
	TicketIDs    []string `json:"ticketIds,omitempty"`
	MemberID     int      `json:"memberId,omitempty"`
}
