package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"filmsociety/api/cms"
	"filmsociety/api/logger"
	"filmsociety/api/middleware"
	"filmsociety/api/models"
	"filmsociety/api/payments"
	"filmsociety/api/store"
	"filmsociety/api/utils"
)

type MemberRepository interface {
	CreateMember(ctx context.Context, m *models.Member) (*models.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*models.Member, error)
	MarkMemberPaid(ctx context.Context, intentID string) error
}

type TicketRepository interface {
	ReserveTickets(ctx context.Context, capacity int, tickets []models.Ticket) error
	CountSold(ctx context.Context, screeningID string) (int, error)
	MarkTicketsPaid(ctx context.Context, intentID string) (int64, error)
	ReleaseTickets(ctx context.Context, intentID string) (int64, error)
}

// ScreeningSource resolves the screening a ticket is bought for.
type ScreeningSource interface {
	ScreeningByID(ctx context.Context, id string) (*cms.Screening, error)
}

type MemberHandlersConfig struct {
	TierPrices    map[string]int64
	Currency      string
	CookieName    string
	SecureCookie  bool
	WebhookSecret string
}

type MemberHandlers struct {
	members    MemberRepository
	tickets    TicketRepository
	screenings ScreeningSource
	payments   payments.Creator
	jwt        *utils.JWTManager
	cfg        MemberHandlersConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewMemberHandlers(
	members MemberRepository,
	tickets TicketRepository,
	screenings ScreeningSource,
	pay payments.Creator,
	jwt *utils.JWTManager,
	cfg MemberHandlersConfig,
	l *zap.Logger,
) *MemberHandlers {
	if cfg.CookieName == "" {
		cfg.CookieName = "jwt_token"
	}
	return &MemberHandlers{
		members:    members,
		tickets:    tickets,
		screenings: screenings,
		payments:   pay,
		jwt:        jwt,
		cfg:        cfg,
		logger:     logger.OrNop(l),
		now:        time.Now,
	}
}

// Join registers a pending member and opens a payment for their tier.
func (h *MemberHandlers) Join(c *gin.Context) {
	log := logger.FromGin(c, h.logger)

	var req models.MembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	price, ok := h.cfg.TierPrices[req.Tier]
	if !ok || price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Membership tier %q is not available", req.Tier)})
		return
	}

	ctx := c.Request.Context()
	_, err := h.members.GetMemberByEmail(ctx, req.Email)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "A member with this email already exists"})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("member lookup failed during signup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check membership"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	intent, err := h.payments.CreatePaymentIntent(ctx, payments.IntentRequest{
		AmountPence: price,
		Purpose:     payments.PurposeMembership,
		Email:       req.Email,
		Description: fmt.Sprintf("Film society %s membership", req.Tier),
		Metadata:    map[string]string{"tier": req.Tier},
	})
	if err != nil {
		log.Error("failed to open membership payment", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable, please try again"})
		return
	}

	member, err := h.members.CreateMember(ctx, &models.Member{
		Email:           req.Email,
		Name:            req.Name,
		Tier:            req.Tier,
		Status:          models.StatusPending,
		PaymentIntentID: intent.ID,
		HashedPassword:  hashedPassword,
	})
	if errors.Is(err, store.ErrMemberExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "A member with this email already exists"})
		return
	}
	if err != nil {
		log.Error("failed to create member", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register member"})
		return
	}

	c.JSON(http.StatusCreated, models.CheckoutResponse{
		ClientSecret: intent.ClientSecret,
		Amount:       intent.AmountPence,
		Currency:     intent.Currency,
		MemberID:     member.ID,
	})
}

// BuyTickets reserves tickets for a screening and opens a payment for them.
func (h *MemberHandlers) BuyTickets(c *gin.Context) {
	log := logger.FromGin(c, h.logger)

	var req models.TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	screening, err := h.screenings.ScreeningByID(ctx, req.ScreeningID)
	if errors.Is(err, cms.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Screening not found"})
		return
	}
	if err != nil {
		log.Error("failed to load screening", zap.String("screening_id", req.ScreeningID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not load screening, please try again"})
		return
	}

	if screening.SoldOut || (!screening.StartsAt.IsZero() && screening.StartsAt.Before(h.now())) {
		c.JSON(http.StatusConflict, gin.H{"error": "Tickets are no longer available for this screening"})
		return
	}
	if screening.Capacity > 0 {
		sold, err := h.tickets.CountSold(ctx, screening.ID)
		if err != nil {
			log.Error("failed to count sold tickets", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check availability"})
			return
		}
		if remaining := screening.Capacity - sold; req.Quantity > remaining {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Not enough tickets left",
				"remaining": max(remaining, 0),
			})
			return
		}
	}

	amount := screening.PricePence * int64(req.Quantity)
	resp := models.CheckoutResponse{Amount: amount, Currency: h.cfg.Currency}
	status := models.StatusPaid
	intentID := ""

	if amount > 0 {
		intent, err := h.payments.CreatePaymentIntent(ctx, payments.IntentRequest{
			AmountPence: amount,
			Purpose:     payments.PurposeTickets,
			Email:       req.Email,
			Description: fmt.Sprintf("%d x %s", req.Quantity, screening.Film.Title),
			Metadata:    map[string]string{"screening_id": screening.ID},
		})
		if err != nil {
			log.Error("failed to open ticket payment", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable, please try again"})
			return
		}
		status = models.StatusPending
		intentID = intent.ID
		resp.ClientSecret = intent.ClientSecret
		resp.Currency = intent.Currency
	}

	tickets := make([]models.Ticket, req.Quantity)
	for i := range tickets {
		tickets[i] = models.Ticket{
			ID:              uuid.NewString(),
			ScreeningID:     screening.ID,
			Email:           req.Email,
			Name:            req.Name,
			AmountPence:     screening.PricePence,
			Status:          status,
			PaymentIntentID: intentID,
		}
		resp.TicketIDs = append(resp.TicketIDs, tickets[i].ID)
	}

	err = h.tickets.ReserveTickets(ctx, screening.Capacity, tickets)
	var capErr *store.CapacityError
	if errors.As(err, &capErr) {
		// The unconfirmed intent is never handed to the client.
		log.Info("tickets sold out during checkout",
			zap.String("screening_id", screening.ID), zap.String("intent_id", intentID))
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Not enough tickets left",
			"remaining": capErr.Remaining,
		})
		return
	}
	if err != nil {
		log.Error("failed to reserve tickets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reserve tickets"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// PaymentWebhook marks members and tickets paid when the provider confirms
// their payment intent, and releases held tickets when it fails.
func (h *MemberHandlers) PaymentWebhook(c *gin.Context) {
	log := logger.FromGin(c, h.logger)

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 64<<10))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}

	event, err := payments.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), h.cfg.WebhookSecret)
	if err != nil {
		log.Warn("rejected payment webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook"})
		return
	}
	if event == nil {
		c.Status(http.StatusOK)
		return
	}

	ctx := c.Request.Context()
	if event.Failed() {
		if event.Purpose == payments.PurposeTickets {
			if _, err := h.tickets.ReleaseTickets(ctx, event.IntentID); err != nil {
				log.Error("failed to release tickets", zap.String("intent_id", event.IntentID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to release tickets"})
				return
			}
		}
		c.Status(http.StatusOK)
		return
	}
	if !event.Succeeded() {
		c.Status(http.StatusOK)
		return
	}

	switch event.Purpose {
	case payments.PurposeMembership:
		err = h.members.MarkMemberPaid(ctx, event.IntentID)
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("payment for unknown member", zap.String("intent_id", event.IntentID))
			err = nil
		}
	case payments.PurposeTickets:
		_, err = h.tickets.MarkTicketsPaid(ctx, event.IntentID)
	default:
		log.Info("ignoring payment with unknown purpose", zap.String("purpose", event.Purpose))
	}
	if err != nil {
		log.Error("failed to record payment", zap.String("intent_id", event.IntentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		return
	}

	log.Info("payment recorded", zap.String("intent_id", event.IntentID), zap.String("purpose", event.Purpose))
	c.Status(http.StatusOK)
}

// Login authenticates a member and sets the JWT cookie.
func (h *MemberHandlers) Login(c *gin.Context) {
	log := logger.FromGin(c, h.logger)

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	member, err := h.members.GetMemberByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("member lookup failed during login", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(member.HashedPassword, []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := h.jwt.Generate(member)
	if err != nil {
		log.Error("failed to generate JWT", zap.Int("member_id", member.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, tokenString, int(h.jwt.TTL()/time.Second), "/", "", h.cfg.SecureCookie, true)

	log.Info("member logged in", zap.Int("member_id", member.ID))
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"email":   member.Email,
		"tier":    member.Tier,
		"status":  member.Status,
	})
}

// Me returns the signed-in member. It must run behind AuthRequired.
func (h *MemberHandlers) Me(c *gin.Context) {
	email := c.GetString(middleware.ContextMemberEmail)
	if email == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Member sign-in required"})
		return
	}

	member, err := h.members.GetMemberByEmail(c.Request.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}
	if err != nil {
		logger.FromGin(c, h.logger).Error("member lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load member"})
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *MemberHandlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, "", -1, "/", "", h.cfg.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
