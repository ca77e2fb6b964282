package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// CreateCustomerRequest alta de un cliente
type CreateCustomerRequest struct {
	DNI       string `json:"dni" binding:"required,len=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Address   string `json:"address"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// CreateSubscriptionRequest alta de un contrato de servicio
type CreateSubscriptionRequest struct {
	CustomerID     string  `json:"customer_id" binding:"required"`
	ContractCode   string  `json:"contract_code" binding:"required"`
	MonthlyRate    float64 `json:"monthly_rate" binding:"required,gt=0"`
	Prepaid        bool    `json:"prepaid"`
	PayDay         int     `json:"pay_day" binding:"required,min=1,max=31"`
	ClientIP       string  `json:"client_ip"`
	InstallAddress string  `json:"install_address"`
}

// SubscriptionHandler expone el alta y consulta de clientes y contratos
type SubscriptionHandler struct {
	customerRepo     repository.CustomerRepository
	subscriptionRepo repository.SubscriptionRepository
	log              *logger.Logger
}

// NewSubscriptionHandler crea el handler de suscripciones
func NewSubscriptionHandler(customerRepo repository.CustomerRepository, subscriptionRepo repository.SubscriptionRepository, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		customerRepo:     customerRepo,
		subscriptionRepo: subscriptionRepo,
		log:              log,
	}
}

// CreateCustomer registra un cliente nuevo
func (h *SubscriptionHandler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnw("Invalid customer request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer := domain.Customer{
		ID:           uuid.New(),
		DNI:          req.DNI,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Address:      req.Address,
		Email:        req.Email,
		Phone:        req.Phone,
		Active:       true,
		RegisteredAt: time.Now().UTC(),
	}

	created, err := h.customerRepo.Create(c.Request.Context(), customer)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Customer with this DNI already exists"})
			return
		}
		h.log.Errorw("Failed to create customer", "dni", req.DNI, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create customer"})
		return
	}

	h.log.Infow("Customer created", "customerId", created.ID, "dni", created.DNI)
	c.JSON(http.StatusCreated, created)
}

// CreateSubscription registra un contrato nuevo para un cliente existente
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnw("Invalid subscription request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer ID"})
		return
	}

	if _, err := h.customerRepo.GetByID(c.Request.Context(), customerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
			return
		}
		h.log.Errorw("Failed to look up customer", "customerId", customerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	now := time.Now().UTC()
	sub := domain.Subscription{
		ID:             uuid.New(),
		CustomerID:     customerID,
		ContractCode:   req.ContractCode,
		MonthlyRate:    req.MonthlyRate,
		Prepaid:        req.Prepaid,
		PayDay:         req.PayDay,
		Active:         true,
		ClientIP:       req.ClientIP,
		InstallAddress: req.InstallAddress,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := h.subscriptionRepo.Create(c.Request.Context(), sub)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Contract code already in use"})
			return
		}
		h.log.Errorw("Failed to create subscription", "contractCode", req.ContractCode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	h.log.Infow("Subscription created", "subscriptionId", created.ID, "contractCode", created.ContractCode)
	c.JSON(http.StatusCreated, created)
}

// GetSubscription devuelve un contrato por ID
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	subID, err := uuid.Parse(c.Param("subscription_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	sub, err := h.subscriptionRepo.GetByID(c.Request.Context(), subID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		h.log.Errorw("Failed to get subscription", "subscriptionId", subID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// ListSubscriptions devuelve todos los contratos; ?active=true filtra los vigentes
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	var (
		subs []domain.Subscription
		err  error
	)
	if c.Query("active") == "true" {
		subs, err = h.subscriptionRepo.GetAllActive(c.Request.Context())
	} else {
		subs, err = h.subscriptionRepo.GetAll(c.Request.Context())
	}
	if err != nil {
		h.log.Errorw("Failed to list subscriptions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list subscriptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}

// GetCustomerSubscriptions devuelve los contratos de un cliente
func (h *SubscriptionHandler) GetCustomerSubscriptions(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid customer ID"})
		return
	}

	subs, err := h.subscriptionRepo.GetByCustomerID(c.Request.Context(), customerID)
	if err != nil {
		h.log.Errorw("Failed to list customer subscriptions", "customerId", customerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list subscriptions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}
