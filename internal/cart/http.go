package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"PharmaStore/internal/auth"
	"PharmaStore/internal/catalog"
	"PharmaStore/pkg/web"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Carts    Store
	Products catalog.Store
	Log      *zap.Logger
}

func (s *Server) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "no user")
		return
	}

	c, found, err := s.Carts.Get(r.Context(), id.UserID)
	if err != nil {
		s.Log.Error("get cart failed", zap.Error(err), zap.String("user_id", id.UserID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if !found {
		web.WriteNullData(w, http.StatusOK)
		return
	}
	web.WriteData(w, http.StatusOK, c)
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "no user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req addItemReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, "bad json")
		return
	}
	if req.ProductID == "" {
		web.WriteError(w, r, http.StatusBadRequest, "product_id required")
		return
	}
	if req.Quantity < 1 {
		web.WriteError(w, r, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	p, found, err := s.Products.Get(r.Context(), req.ProductID)
	if err != nil {
		s.Log.Error("resolve product failed", zap.Error(err), zap.String("product_id", req.ProductID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if !found {
		web.WriteError(w, r, http.StatusNotFound, "product not found")
		return
	}

	c, err := s.Carts.AddItem(r.Context(), id.UserID, p, req.Quantity)
	if err != nil {
		s.Log.Error("add to cart failed", zap.Error(err), zap.String("user_id", id.UserID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	web.WriteData(w, http.StatusOK, c)
}

func (s *Server) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		web.WriteError(w, r, http.StatusUnauthorized, "no user")
		return
	}

	itemID := chi.URLParam(r, "itemID")
	c, err := s.Carts.RemoveItem(r.Context(), id.UserID, itemID)
	if errors.Is(err, ErrNotFound) {
		web.WriteError(w, r, http.StatusNotFound, "cart item not found")
		return
	}
	if err != nil {
		s.Log.Error("remove from cart failed", zap.Error(err), zap.String("user_id", id.UserID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	web.WriteData(w, http.StatusOK, c)
}
