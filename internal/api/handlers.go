package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tableside/internal/idempotency"
	"tableside/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// How long a request waits on a key held by an in-flight request
const (
	replayWait = 5 * time.Second
	replayPoll = 20 * time.Millisecond
)

// Health counter names
const (
	counterOrdersCreated    = "orders_created"
	counterOrdersConfirmed  = "orders_confirmed"
	counterPaymentsRecorded = "payments_recorded"
	counterReplays          = "payment_replays"
)

// Catalog handlers

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.store.ListCategories()
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", nonNil(categories))
}

func (s *Server) listTables(c *gin.Context) {
	tables, err := s.store.ListTables()
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", nonNil(tables))
}

func (s *Server) listMenuItems(c *gin.Context) {
	items, err := s.store.ListMenuItems()
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", nonNil(items))
}

func (s *Server) setAvailability(c *gin.Context) {
	var req models.AvailabilityUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.store.SetItemAvailability(req.ItemID, req.Available)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.hub.Broadcast(models.Event{Type: models.EventCatalogChanged})
	respond(c, http.StatusOK, "Menu item updated", item)
}

// Order handlers

func (s *Server) listOrders(c *gin.Context) {
	orders, err := s.store.ListOrders(models.OrderStatus(c.Query("status")))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", nonNil(orders))
}

func (s *Server) createOrder(c *gin.Context) {
	var req models.NewOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order: "+err.Error())
		return
	}

	order, err := s.store.CreateOrder(req)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.monitor.Inc(counterOrdersCreated)
	s.logger.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("order_code", order.Code),
		zap.Uint("table_id", order.TableID),
		zap.Int64("total", int64(order.Total)))
	s.hub.Broadcast(models.Event{Type: models.EventOrderCreated, OrderID: order.ID})
	respond(c, http.StatusCreated, "Order created", order)
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req models.StatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid status update: "+err.Error())
		return
	}

	order, err := s.store.UpdateOrderStatus(req.OrderID, req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}

	if order.Status == models.OrderStatusConfirmed {
		s.monitor.Inc(counterOrdersConfirmed)
		s.hub.Broadcast(models.Event{Type: models.EventOrderConfirmed, OrderID: order.ID})
	}
	respond(c, http.StatusOK, "Order status updated", order)
}

// approveOrder records the payment and confirms the order in one transaction.
func (s *Server) approveOrder(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid payment: "+err.Error())
		return
	}

	key := c.GetHeader(idempotency.Header)
	rec, ok := s.checkReplay(c, key, idempotency.ScopeApproval, req.OrderID)
	if !ok {
		return
	}
	if rec != nil {
		order, err := s.store.GetOrder(rec.OrderID)
		if err != nil {
			s.fail(c, err)
			return
		}
		payment, err := s.store.GetPayment(rec.PaymentID)
		if err != nil {
			s.fail(c, err)
			return
		}
		respond(c, http.StatusOK, "Order already approved", models.Approval{Order: *order, Payment: *payment})
		return
	}

	approval, err := s.store.ApproveOrder(req)
	if err != nil {
		s.release(key)
		s.metrics.ApprovalFinished(modeOf(req.Status), req.Method, "rejected")
		s.fail(c, err)
		return
	}
	s.remember(key, idempotency.ScopeApproval, approval.Payment)

	s.paymentRecorded(approval.Payment)
	s.monitor.Inc(counterOrdersConfirmed)
	s.metrics.ApprovalFinished(modeOf(req.Status), req.Method, "approved")
	s.hub.Broadcast(models.Event{Type: models.EventOrderConfirmed, OrderID: approval.Order.ID})
	respond(c, http.StatusOK, "Order approved", approval)
}

// Payment handlers

func (s *Server) addPayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid payment: "+err.Error())
		return
	}

	key := c.GetHeader(idempotency.Header)
	rec, ok := s.checkReplay(c, key, idempotency.ScopePayment, req.OrderID)
	if !ok {
		return
	}
	if rec != nil {
		payment, err := s.store.GetPayment(rec.PaymentID)
		if err != nil {
			s.fail(c, err)
			return
		}
		respond(c, http.StatusOK, "Payment already recorded", payment)
		return
	}

	payment, err := s.store.AddPayment(req)
	if err != nil {
		s.release(key)
		s.fail(c, err)
		return
	}
	s.remember(key, idempotency.ScopePayment, *payment)

	s.paymentRecorded(*payment)
	respond(c, http.StatusCreated, "Payment recorded", payment)
}

func (s *Server) listPayments(c *gin.Context) {
	var orderID uint64
	if raw := c.Query("order_id"); raw != "" {
		var err error
		orderID, err = strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondError(c, http.StatusBadRequest, "order_id must be a positive integer")
			return
		}
	}

	payments, err := s.store.ListPayments(uint(orderID))
	if err != nil {
		s.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "", nonNil(payments))
}

// checkReplay claims an idempotency key. It returns the stored record for
// a replay, nil when the caller now holds the key, and ok=false when a
// response has already been written. A request that finds the key held by
// one still in flight waits for that request to finish.
func (s *Server) checkReplay(c *gin.Context, key, scope string, orderID uint) (*idempotency.Record, bool) {
	if key == "" {
		return nil, true
	}
	ctx := c.Request.Context()
	deadline := time.Now().Add(replayWait)
	for {
		rec, err := s.keys.Claim(ctx, idempotency.Record{Key: key, Scope: scope, OrderID: orderID})
		if err != nil {
			s.fail(c, err)
			return nil, false
		}
		if rec == nil {
			return nil, true
		}
		if !rec.Matches(scope, orderID) {
			respondError(c, http.StatusUnprocessableEntity, "Idempotency-Key was already used for a different request")
			return nil, false
		}
		if !rec.Pending() {
			s.monitor.Inc(counterReplays)
			s.metrics.IdempotentReplay()
			s.logger.Info("payment request replayed",
				zap.String("idempotency_key", key),
				zap.Uint("order_id", rec.OrderID),
				zap.Uint("payment_id", rec.PaymentID))
			return rec, true
		}
		if time.Now().After(deadline) {
			respondError(c, http.StatusConflict, "A request with this Idempotency-Key is still being processed")
			return nil, false
		}

		select {
		case <-ctx.Done():
			respondError(c, http.StatusRequestTimeout, "Request cancelled")
			return nil, false
		case <-time.After(replayPoll):
		}
	}
}

func (s *Server) remember(key, scope string, payment models.Payment) {
	if key == "" {
		return
	}
	rec := idempotency.Record{Key: key, Scope: scope, OrderID: payment.OrderID, PaymentID: payment.ID}
	if err := s.keys.Put(context.Background(), rec); err != nil {
		// The payment is stored; only replay detection is lost.
		s.logger.Error("failed to store idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}

// release frees a claimed key after the request failed so the client can retry.
func (s *Server) release(key string) {
	if key == "" {
		return
	}
	if err := s.keys.Release(context.Background(), key); err != nil {
		s.logger.Error("failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func (s *Server) paymentRecorded(p models.Payment) {
	s.monitor.Inc(counterPaymentsRecorded)
	s.metrics.PaymentRecorded(p)
	s.logger.Info("payment recorded",
		zap.Uint("order_id", p.OrderID),
		zap.Uint("payment_id", p.ID),
		zap.String("method", string(p.Method)),
		zap.String("status", string(p.Status)),
		zap.Int64("amount_paid", int64(p.AmountPaid)))
	s.hub.Broadcast(models.Event{Type: models.EventPaymentRecorded, OrderID: p.OrderID})
}

func modeOf(status models.PaymentStatus) models.PaymentMode {
	if status == models.PaymentStatusPartial {
		return models.PaymentModePartial
	}
	return models.PaymentModeFull
}
