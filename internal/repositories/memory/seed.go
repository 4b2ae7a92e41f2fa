package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/biccshop/checkout/internal/domain"
)

// Seed is the fixture file used to run the service without cloud dependencies.
//
//	coupons:
//	  - code: SAVE500
//	    kind: flat
//	    value: 500
//	collectionPoints:
//	  - id: cp-dhk-1
//	    name: Gulshan Hub
//	    district: Dhaka
//	carts:
//	  cust-1:
//	    - productId: p-1
//	      unitPrice: 2000
//	      quantity: 2
type Seed struct {
	Coupons          []seedCoupon          `yaml:"coupons"`
	CollectionPoints []seedCollectionPoint `yaml:"collectionPoints"`
	Carts            map[string][]seedLine `yaml:"carts"`
}

type seedCoupon struct {
	Code      string     `yaml:"code"`
	Kind      string     `yaml:"kind"`
	Value     int64      `yaml:"value"`
	Active    *bool      `yaml:"active"`
	ExpiresAt *time.Time `yaml:"expiresAt"`
}

type seedCollectionPoint struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	District string `yaml:"district"`
	PostCode string `yaml:"postCode"`
	State    string `yaml:"state"`
}

type seedLine struct {
	ProductID    string `yaml:"productId"`
	SellerID     string `yaml:"sellerId"`
	StoreName    string `yaml:"storeName"`
	ProductName  string `yaml:"productName"`
	ThumbnailURL string `yaml:"thumbnailUrl"`
	UnitPrice    int64  `yaml:"unitPrice"`
	Quantity     int    `yaml:"quantity"`
}

// LoadSeedFile reads and parses a seed file from disk.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("memory seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes a seed document. Unknown keys are rejected.
func ParseSeed(r io.Reader) (Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return Seed{}, nil
		}
		return Seed{}, fmt.Errorf("memory seed: decode: %w", err)
	}
	if err := seed.validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

func (s Seed) validate() error {
	for i, c := range s.Coupons {
		if strings.TrimSpace(c.Code) == "" {
			return fmt.Errorf("memory seed: coupons[%d]: code is required", i)
		}
		switch domain.CouponKind(strings.ToLower(strings.TrimSpace(c.Kind))) {
		case domain.CouponKindFlat, domain.CouponKindPercent:
		default:
			return fmt.Errorf("memory seed: coupons[%d]: unsupported kind %q", i, c.Kind)
		}
	}
	for i, p := range s.CollectionPoints {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("memory seed: collectionPoints[%d]: id is required", i)
		}
	}
	return nil
}

func (c seedCoupon) toDomain() domain.Coupon {
	active := true
	if c.Active != nil {
		active = *c.Active
	}
	return domain.Coupon{
		Code:      strings.ToUpper(strings.TrimSpace(c.Code)),
		Kind:      domain.CouponKind(strings.ToLower(strings.TrimSpace(c.Kind))),
		Value:     c.Value,
		Active:    active,
		ExpiresAt: c.ExpiresAt,
	}
}

func (p seedCollectionPoint) toDomain() domain.CollectionPoint {
	return domain.CollectionPoint{
		ID:       strings.TrimSpace(p.ID),
		Name:     p.Name,
		Address:  p.Address,
		District: p.District,
		PostCode: p.PostCode,
		State:    p.State,
	}
}

func (l seedLine) toDomain() domain.CartLine {
	return domain.CartLine{
		ProductID:           l.ProductID,
		SellerID:            l.SellerID,
		StoreName:           l.StoreName,
		ProductName:         l.ProductName,
		ProductThumbnailURL: l.ThumbnailURL,
		UnitPrice:           l.UnitPrice,
		Quantity:            l.Quantity,
	}
}
