package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/cedarstore/api/internal/domain"
	pfirestore "github.com/cedarstore/api/internal/platform/firestore"
	"github.com/cedarstore/api/internal/repositories"
)

const (
	productsCollection        = "products"
	deliveryMethodsCollection = "deliveryMethods"
	couponsCollection         = "coupons"
)

// CatalogRepository reads the reference data carts and orders are priced
// against. The checkout core never writes to these collections.
type CatalogRepository struct {
	products        *pfirestore.BaseRepository[productDocument]
	deliveryMethods *pfirestore.BaseRepository[deliveryMethodDocument]
	coupons         *pfirestore.BaseRepository[couponDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog reader.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		products:        pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		deliveryMethods: pfirestore.NewBaseRepository[deliveryMethodDocument](provider, deliveryMethodsCollection, nil, nil),
		coupons:         pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil, nil),
	}, nil
}

// GetProduct loads a single product by ID.
func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	doc, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc), nil
}

// GetProducts loads the given product IDs. IDs without a catalog entry are
// absent from the returned map rather than erroring, so callers can report
// every missing product at once.
func (r *CatalogRepository) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	found := make(map[string]domain.Product, len(productIDs))
	for _, productID := range productIDs {
		id := strings.TrimSpace(productID)
		if id == "" {
			continue
		}
		if _, ok := found[id]; ok {
			continue
		}

		doc, err := r.products.Get(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		found[id] = decodeProduct(doc)
	}
	return found, nil
}

// GetDeliveryMethod loads a delivery method by ID.
func (r *CatalogRepository) GetDeliveryMethod(ctx context.Context, methodID string) (domain.DeliveryMethod, error) {
	if r == nil || r.deliveryMethods == nil {
		return domain.DeliveryMethod{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(methodID)
	if id == "" {
		return domain.DeliveryMethod{}, errors.New("catalog repository: delivery method id is required")
	}

	doc, err := r.deliveryMethods.Get(ctx, id)
	if err != nil {
		return domain.DeliveryMethod{}, err
	}
	return domain.DeliveryMethod{
		ID:           doc.ID,
		ShortName:    doc.Data.ShortName,
		Description:  doc.Data.Description,
		DeliveryTime: doc.Data.DeliveryTime,
		Price:        doc.Data.Price,
	}, nil
}

// GetCoupon loads a coupon by ID.
func (r *CatalogRepository) GetCoupon(ctx context.Context, couponID string) (domain.Coupon, error) {
	if r == nil || r.coupons == nil {
		return domain.Coupon{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(couponID)
	if id == "" {
		return domain.Coupon{}, errors.New("catalog repository: coupon id is required")
	}

	doc, err := r.coupons.Get(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	return domain.Coupon{
		ID:         doc.ID,
		Name:       doc.Data.Name,
		AmountOff:  doc.Data.AmountOff,
		PercentOff: doc.Data.PercentOff,
	}, nil
}

type productDocument struct {
	Name            string `firestore:"name"`
	Price           int64  `firestore:"price"`
	PictureURL      string `firestore:"pictureUrl,omitempty"`
	QuantityInStock int    `firestore:"quantityInStock"`
}

type couponDocument struct {
	Name       string  `firestore:"name"`
	AmountOff  int64   `firestore:"amountOff,omitempty"`
	PercentOff float64 `firestore:"percentOff,omitempty"`
}

func decodeProduct(doc pfirestore.Document[productDocument]) domain.Product {
	return domain.Product{
		ID:              doc.ID,
		Name:            doc.Data.Name,
		Price:           doc.Data.Price,
		PictureURL:      doc.Data.PictureURL,
		QuantityInStock: doc.Data.QuantityInStock,
	}
}
