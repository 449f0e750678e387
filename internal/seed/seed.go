// Package seed loads the demo storefront data: the two fixed accounts and
// the pharmacy catalog. There is no self-service registration, so seeding
// is the only way users enter the system.
package seed

import (
	"context"
	"errors"
	"fmt"

	"PharmaStore/internal/auth"
	"PharmaStore/internal/catalog"
)

type UserSeed struct {
	User     auth.User
	Password string
}

func Users() []UserSeed {
	return []UserSeed{
		{
			User: auth.User{
				ID:        "u_admin",
				Email:     "admin@walgreens.com",
				FirstName: "Store",
				LastName:  "Admin",
				Role:      auth.RoleAdmin,
			},
			Password: "admin123",
		},
		{
			User: auth.User{
				ID:        "u_customer",
				Email:     "user@walgreens.com",
				FirstName: "Jane",
				LastName:  "Doe",
				Role:      auth.RoleCustomer,
			},
			Password: "user123",
		},
	}
}

func Products() []catalog.Product {
	return []catalog.Product{
		{
			ID:            "p_001",
			Name:          "Ibuprofen 200mg Tablets",
			Description:   "Pain reliever and fever reducer, 100 count bottle.",
			PriceCents:    899,
			Category:      catalog.CategoryMedicines,
			ImageURL:      "/images/ibuprofen-200mg.jpg",
			StockQuantity: 150,
		},
		{
			ID:            "p_002",
			Name:          "Acetaminophen Extra Strength",
			Description:   "500mg caplets for headache and minor aches, 50 count.",
			PriceCents:    749,
			Category:      catalog.CategoryMedicines,
			ImageURL:      "/images/acetaminophen-500mg.jpg",
			StockQuantity: 200,
		},
		{
			ID:            "p_003",
			Name:          "Children's Cough Syrup",
			Description:   "Cherry flavored cough suppressant, ages 4 and up.",
			PriceCents:    1299,
			Category:      catalog.CategoryMedicines,
			ImageURL:      "/images/cough-syrup.jpg",
			StockQuantity: 80,
		},
		{
			ID:            "p_004",
			Name:          "Vitamin D3 2000 IU Softgels",
			Description:   "Supports bone and immune health, 90 softgels.",
			PriceCents:    1199,
			Category:      catalog.CategoryWellness,
			ImageURL:      "/images/vitamin-d3.jpg",
			StockQuantity: 120,
		},
		{
			ID:            "p_005",
			Name:          "Daily Multivitamin Gummies",
			Description:   "Adult multivitamin gummies, mixed berry, 150 count.",
			PriceCents:    1549,
			Category:      catalog.CategoryWellness,
			ImageURL:      "/images/multivitamin-gummies.jpg",
			StockQuantity: 95,
		},
		{
			ID:            "p_006",
			Name:          "Hydrating Face Lotion SPF 30",
			Description:   "Daily moisturizer with broad spectrum sunscreen.",
			PriceCents:    1425,
			Category:      catalog.CategoryPersonalCare,
			ImageURL:      "/images/face-lotion-spf30.jpg",
			StockQuantity: 60,
		},
		{
			ID:            "p_007",
			Name:          "Electric Toothbrush Heads",
			Description:   "Replacement brush heads, soft bristle, 4 pack.",
			PriceCents:    1999,
			Category:      catalog.CategoryPersonalCare,
			ImageURL:      "/images/toothbrush-heads.jpg",
			StockQuantity: 45,
		},
		{
			ID:            "p_008",
			Name:          "Compact First Aid Kit",
			Description:   "85 piece kit for home and travel.",
			PriceCents:    2250,
			Category:      catalog.CategoryPersonalCare,
			ImageURL:      "/images/first-aid-kit.jpg",
			StockQuantity: 0,
		},
	}
}

// Apply loads the seed data into the given stores. Re-running against a
// store that already holds the seed users is not an error.
func Apply(ctx context.Context, users auth.Store, products catalog.Store) error {
	for _, su := range Users() {
		err := users.Create(ctx, su.User, su.Password)
		if err != nil && !errors.Is(err, auth.ErrEmailExists) {
			return fmt.Errorf("seed user %s: %w", su.User.Email, err)
		}
	}

	for _, p := range Products() {
		if _, ok, err := products.Get(ctx, p.ID); err != nil {
			return fmt.Errorf("check product %s: %w", p.ID, err)
		} else if ok {
			continue
		}
		if err := products.Create(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	return nil
}
