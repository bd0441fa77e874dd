package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// value mirrors the {"value": ...} wrapper the ERP puts around every column.
type value[T any] struct {
	Value T `json:"value"`
}

type Customer struct {
	CustomerID           value[string]    `json:"CustomerID"`
	CustomerName         value[string]    `json:"CustomerName"`
	Email                value[string]    `json:"Email"`
	Phone1               value[string]    `json:"Phone1"`
	Status               value[string]    `json:"Status"`
	LastModifiedDateTime value[time.Time] `json:"LastModifiedDateTime"`
}

type Invoice struct {
	Type                 value[string]          `json:"Type"`
	ReferenceNbr         value[string]          `json:"ReferenceNbr"`
	CustomerID           value[string]          `json:"CustomerID"`
	Description          value[string]          `json:"Description"`
	Amount               value[decimal.Decimal] `json:"Amount"`
	Balance              value[decimal.Decimal] `json:"Balance"`
	Date                 value[time.Time]       `json:"Date"`
	DueDate              value[time.Time]       `json:"DueDate"`
	Status               value[string]          `json:"Status"`
	LastModifiedDateTime value[time.Time]       `json:"LastModifiedDateTime"`
}

type Application struct {
	AdjustedRefNbr value[string]          `json:"AdjustedRefNbr"`
	AmountPaid     value[decimal.Decimal] `json:"AmountPaid"`
	Date           value[time.Time]       `json:"Date"`
}

type Payment struct {
	Type                 value[string]          `json:"Type"`
	ReferenceNbr         value[string]          `json:"ReferenceNbr"`
	CustomerID           value[string]          `json:"CustomerID"`
	PaymentAmount        value[decimal.Decimal] `json:"PaymentAmount"`
	ApplicationDate      value[time.Time]       `json:"ApplicationDate"`
	PaymentMethod        value[string]          `json:"PaymentMethod"`
	ApplicationHistory   []Application          `json:"ApplicationHistory"`
	LastModifiedDateTime value[time.Time]       `json:"LastModifiedDateTime"`
}

// MockERP holds a generated ledger and a failure rate for the edge functions.
type MockERP struct {
	mu          sync.RWMutex
	customers   []Customer
	invoices    []Invoice
	payments    []Payment
	failureRate float64
	rng         *rand.Rand
}

func NewMockERP(customers int, failureRate float64, seed int64) *MockERP {
	m := &MockERP{
		failureRate: failureRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
	m.generate(customers)
	return m
}

func (m *MockERP) generate(customers int) {
	now := time.Now().UTC()
	ref := 1
	for i := 1; i <= customers; i++ {
		id := fmt.Sprintf("C%05d", i)
		modified := now.Add(-time.Duration(1+m.rng.Intn(72)) * time.Hour)
		m.customers = append(m.customers, Customer{
			CustomerID:           value[string]{id},
			CustomerName:         value[string]{fmt.Sprintf("Customer %d Ltd", i)},
			Email:                value[string]{fmt.Sprintf("ap@customer%d.test", i)},
			Phone1:               value[string]{fmt.Sprintf("+1555%07d", i)},
			Status:               value[string]{"Active"},
			LastModifiedDateTime: value[time.Time]{modified},
		})

		for j := 0; j < 1+m.rng.Intn(5); j++ {
			amount := decimal.NewFromInt(int64(100 + m.rng.Intn(20000))).Div(decimal.NewFromInt(10))
			date := now.AddDate(0, 0, -m.rng.Intn(120))
			inv := Invoice{
				Type:                 value[string]{"Invoice"},
				ReferenceNbr:         value[string]{fmt.Sprintf("%06d", ref)},
				CustomerID:           value[string]{id},
				Description:          value[string]{"Services rendered"},
				Amount:               value[decimal.Decimal]{amount},
				Balance:              value[decimal.Decimal]{amount},
				Date:                 value[time.Time]{date},
				DueDate:              value[time.Time]{date.AddDate(0, 0, 30)},
				Status:               value[string]{"Open"},
				LastModifiedDateTime: value[time.Time]{modified},
			}
			ref++

			// pay roughly a third of the invoices in part
			if m.rng.Intn(3) == 0 {
				paid := amount.Div(decimal.NewFromInt(2)).Round(2)
				inv.Balance.Value = amount.Sub(paid)
				m.payments = append(m.payments, Payment{
					Type:            value[string]{"Payment"},
					ReferenceNbr:    value[string]{fmt.Sprintf("P%05d", len(m.payments)+1)},
					CustomerID:      value[string]{id},
					PaymentAmount:   value[decimal.Decimal]{paid},
					ApplicationDate: value[time.Time]{date.AddDate(0, 0, 10)},
					PaymentMethod:   value[string]{"CHECK"},
					ApplicationHistory: []Application{{
						AdjustedRefNbr: inv.ReferenceNbr,
						AmountPaid:     value[decimal.Decimal]{paid},
						Date:           value[time.Time]{date.AddDate(0, 0, 10)},
					}},
					LastModifiedDateTime: value[time.Time]{modified},
				})
			}
			m.invoices = append(m.invoices, inv)
		}
	}
}

var sinceFilter = regexp.MustCompile(`datetimeoffset'([^']+)'`)

// window applies the $filter, $top and $skip parameters the sync client sends.
func window[T any](c *gin.Context, rows []T, modified func(T) time.Time) ([]T, error) {
	var since time.Time
	if match := sinceFilter.FindStringSubmatch(c.Query("$filter")); match != nil {
		t, err := time.Parse(time.RFC3339, match[1])
		if err != nil {
			return nil, fmt.Errorf("invalid $filter: %w", err)
		}
		since = t
	}
	top, _ := strconv.Atoi(c.DefaultQuery("$top", "500"))
	skip, _ := strconv.Atoi(c.DefaultQuery("$skip", "0"))

	filtered := make([]T, 0, len(rows))
	for _, r := range rows {
		if modified(r).After(since) {
			filtered = append(filtered, r)
		}
	}
	if skip >= len(filtered) {
		return []T{}, nil
	}
	end := skip + top
	if top <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[skip:end], nil
}

type Handler struct {
	erp *MockERP
}

func NewHandler(erp *MockERP) *Handler {
	return &Handler{erp: erp}
}

func (h *Handler) Customers(c *gin.Context) {
	h.erp.mu.RLock()
	defer h.erp.mu.RUnlock()
	page, err := window(c, h.erp.customers, func(r Customer) time.Time { return r.LastModifiedDateTime.Value })
	respond(c, page, err)
}

func (h *Handler) Invoices(c *gin.Context) {
	h.erp.mu.RLock()
	defer h.erp.mu.RUnlock()
	page, err := window(c, h.erp.invoices, func(r Invoice) time.Time { return r.LastModifiedDateTime.Value })
	respond(c, page, err)
}

func (h *Handler) Payments(c *gin.Context) {
	h.erp.mu.RLock()
	defer h.erp.mu.RUnlock()
	page, err := window(c, h.erp.payments, func(r Payment) time.Time { return r.LastModifiedDateTime.Value })
	respond(c, page, err)
}

func respond[T any](c *gin.Context, page []T, err error) {
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

// Function answers any edge function call. send-email fails at the
// configured rate so the retry path can be exercised.
func (h *Handler) Function(c *gin.Context) {
	name := c.Param("name")
	if c.GetHeader("Authorization") == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	h.erp.mu.Lock()
	fail := h.erp.rng.Float64() < h.erp.failureRate
	h.erp.mu.Unlock()

	if fail {
		log.Warn().Str("function", name).Msg("Function call failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider temporarily unavailable"})
		return
	}

	log.Info().Str("function", name).Interface("to", payload["to"]).Msg("Function invoked")
	c.JSON(http.StatusOK, gin.H{"id": uuid.NewString(), "status": "queued"})
}

// Touch marks every record of a customer as modified now, so the next
// incremental sync picks it up.
func (h *Handler) Touch(c *gin.Context) {
	id := c.Param("customer_id")
	now := time.Now().UTC()

	h.erp.mu.Lock()
	defer h.erp.mu.Unlock()
	touched := 0
	for i := range h.erp.customers {
		if h.erp.customers[i].CustomerID.Value == id {
			h.erp.customers[i].LastModifiedDateTime.Value = now
			touched++
		}
	}
	for i := range h.erp.invoices {
		if h.erp.invoices[i].CustomerID.Value == id {
			h.erp.invoices[i].LastModifiedDateTime.Value = now
			touched++
		}
	}
	if touched == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown customer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"touched": touched})
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		FailureRate *float64 `json:"failure_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	h.erp.mu.Lock()
	if config.FailureRate != nil && *config.FailureRate >= 0 && *config.FailureRate <= 1 {
		h.erp.failureRate = *config.FailureRate
		log.Info().Float64("rate", *config.FailureRate).Msg("Updated failure rate")
	}
	rate := h.erp.failureRate
	h.erp.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"failure_rate": rate})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	h.erp.mu.RLock()
	defer h.erp.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"customers": len(h.erp.customers),
		"invoices":  len(h.erp.invoices),
		"payments":  len(h.erp.payments),
		"timestamp": time.Now(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	entity := router.Group("/entity/Default/22.200.001")
	{
		entity.GET("/Customer", handler.Customers)
		entity.GET("/Invoice", handler.Invoices)
		entity.GET("/Payment", handler.Payments)
	}
	router.POST("/functions/v1/:name", handler.Function)
	router.POST("/mock/customers/:customer_id/touch", handler.Touch)
	router.PUT("/mock/config", handler.UpdateConfig)
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	customers := getEnvInt("CUSTOMERS", 50)
	failureRate := getEnvFloat("FAILURE_RATE", 0)
	seed := int64(getEnvInt("SEED", 42))

	log.Info().
		Str("port", port).
		Int("customers", customers).
		Float64("failure_rate", failureRate).
		Msg("Starting mock ERP")

	handler := NewHandler(NewMockERP(customers, failureRate, seed))
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      SetupRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
