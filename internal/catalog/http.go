package catalog

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"PharmaStore/pkg/web"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Store Store
	Log   *zap.Logger
}

func (s *Server) HandleList(w http.ResponseWriter, r *http.Request) {
	f := Filter{
		Category: Category(strings.TrimSpace(r.URL.Query().Get("category"))),
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if f.Category != "" && !f.Category.Valid() {
		web.WriteError(w, r, http.StatusBadRequest, "unknown category")
		return
	}

	products, err := s.Store.List(r.Context(), f)
	if err != nil {
		s.Log.Error("list products failed", zap.Error(err))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	web.WriteData(w, http.StatusOK, products)
}

func (s *Server) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.Log.Error("get product failed", zap.Error(err), zap.String("id", id))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if !ok {
		web.WriteError(w, r, http.StatusNotFound, "product not found")
		return
	}
	web.WriteData(w, http.StatusOK, p)
}

type productReq struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PriceCents    int64    `json:"price_cents"`
	Category      Category `json:"category"`
	ImageURL      string   `json:"image_url"`
	StockQuantity int      `json:"stock_quantity"`
}

func (req productReq) validate() string {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name required"
	case req.PriceCents < 0:
		return "price must not be negative"
	case req.StockQuantity < 0:
		return "stock must not be negative"
	case !req.Category.Valid():
		return "unknown category"
	}
	return ""
}

func decodeProductReq(w http.ResponseWriter, r *http.Request) (productReq, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req productReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		web.WriteError(w, r, http.StatusBadRequest, "bad json")
		return productReq{}, false
	}
	if msg := req.validate(); msg != "" {
		web.WriteError(w, r, http.StatusBadRequest, msg)
		return productReq{}, false
	}
	return req, true
}

func (s *Server) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProductReq(w, r)
	if !ok {
		return
	}

	p := Product{
		ID:            "p_" + uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
		StockQuantity: req.StockQuantity,
	}

	if err := s.Store.Create(r.Context(), p); err != nil {
		s.Log.Error("create product failed", zap.Error(err))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	created, _, err := s.Store.Get(r.Context(), p.ID)
	if err != nil {
		s.Log.Error("read back product failed", zap.Error(err), zap.String("id", p.ID))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	web.WriteData(w, http.StatusCreated, created)
}

func (s *Server) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, ok := decodeProductReq(w, r)
	if !ok {
		return
	}

	p := Product{
		ID:            id,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		Category:      req.Category,
		ImageURL:      req.ImageURL,
		StockQuantity: req.StockQuantity,
	}

	updated, err := s.Store.Update(r.Context(), p)
	if err != nil {
		s.Log.Error("update product failed", zap.Error(err), zap.String("id", id))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if !updated {
		web.WriteError(w, r, http.StatusNotFound, "product not found")
		return
	}

	current, _, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.Log.Error("read back product failed", zap.Error(err), zap.String("id", id))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	web.WriteData(w, http.StatusOK, current)
}

func (s *Server) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := s.Store.Delete(r.Context(), id)
	if err != nil {
		s.Log.Error("delete product failed", zap.Error(err), zap.String("id", id))
		web.WriteError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if !deleted {
		web.WriteError(w, r, http.StatusNotFound, "product not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
