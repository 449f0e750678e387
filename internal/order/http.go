package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"PharmaStore/internal/auth"
	"PharmaStore/pkg/web"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Store  Store
	Events Publisher
	Log    *zap.Logger
}

type createReq struct {
	ShippingAddress Address `json:"shipping_address"`
}

func (s *Server) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "no user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req createReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, "bad json")
		return
	}
	if msg := req.ShippingAddress.Validate(); msg != "" {
		web.WriteError(w, r, http.StatusBadRequest, msg)
		return
	}

	o, err := s.Store.CreateFromCart(r.Context(), id.UserID, req.ShippingAddress)
	switch {
	case errors.Is(err, ErrCartEmpty):
		web.WriteError(w, r, http.StatusNotFound, "cart not found or empty")
		return
	case errors.Is(err, ErrInsufficientStock):
		web.WriteError(w, r, http.StatusConflict, "insufficient stock")
		return
	case err != nil:
		s.Log.Error("create order failed", zap.Error(err), zap.String("user_id", id.UserID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	s.publish(r, Event{
		Type:       EventCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		TotalCents: o.TotalCents,
		At:         time.Now().UTC(),
	})

	web.WriteData(w, http.StatusCreated, o)
}

func (s *Server) HandleListMine(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "no user")
		return
	}

	orders, err := s.Store.ListByUser(r.Context(), id.UserID)
	if err != nil {
		s.Log.Error("list orders failed", zap.Error(err), zap.String("user_id", id.UserID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	web.WriteData(w, http.StatusOK, orders)
}

func (s *Server) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "no user")
		return
	}

	orderID := chi.URLParam(r, "id")
	o, found, err := s.Store.Get(r.Context(), orderID)
	if err != nil {
		s.Log.Error("get order failed", zap.Error(err), zap.String("order_id", orderID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if !found {
		web.WriteError(w, r, http.StatusNotFound, "order not found")
		return
	}
	if o.UserID != id.UserID && !id.IsAdmin() {
		web.WriteError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	web.WriteData(w, http.StatusOK, o)
}

func (s *Server) HandleListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Store.ListAll(r.Context())
	if err != nil {
		s.Log.Error("list all orders failed", zap.Error(err))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	web.WriteData(w, http.StatusOK, orders)
}

type statusReq struct {
	Status Status `json:"status"`
}

func (s *Server) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req statusReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, "bad json")
		return
	}
	if !req.Status.Valid() {
		web.WriteError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	o, err := s.Store.UpdateStatus(r.Context(), orderID, req.Status)
	switch {
	case errors.Is(err, ErrNotFound):
		web.WriteError(w, r, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, ErrBadTransition):
		web.WriteError(w, r, http.StatusUnprocessableEntity, "illegal status transition")
		return
	case err != nil:
		s.Log.Error("update order status failed", zap.Error(err), zap.String("order_id", orderID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	s.publish(r, Event{
		Type:       EventStatusChanged,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		TotalCents: o.TotalCents,
		At:         time.Now().UTC(),
	})

	web.WriteData(w, http.StatusOK, o)
}

// publish never fails the request; a lost event is logged and left to the
// broker-side reconciliation.
func (s *Server) publish(r *http.Request, e Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(r.Context(), e); err != nil {
		s.Log.Warn("publish event failed",
			zap.Error(err),
			zap.String("type", e.Type),
			zap.String("order_id", e.OrderID),
		)
	}
}
