// Package catalog manages the product collection of the shop document.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-shop/internal/auth"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/ariefcatur/go-realtime-shop/internal/store"
	"github.com/sirupsen/logrus"
)

// Policy decides who may create and remove products.
type Policy string

const (
	// PolicyAdmin: only admins sell, any admin may remove any product.
	PolicyAdmin Policy = "admin"
	// PolicySeller: anyone sells, only the owning seller may remove.
	PolicySeller Policy = "seller"
)

type Catalog struct {
	Store  *store.Store
	Policy Policy
	Clock  func() time.Time
	Log    logrus.FieldLogger
}

type NewProduct struct {
	Name        string
	Price       int64
	Stock       int
	Description string
	Delivery    string
}

// Listing is a filtered view; the totals always cover the whole catalog.
type Listing struct {
	Products      []orders.Product
	TotalProducts int
	TotalStock    int
}

func (c *Catalog) now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}

func (c *Catalog) Create(ctx context.Context, seller auth.Actor, in NewProduct) (orders.Product, error) {
	if c.Policy != PolicySeller && !seller.Admin {
		return orders.Product{}, fmt.Errorf("create product: %w: admin only", orders.ErrForbidden)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Delivery = strings.TrimSpace(in.Delivery)
	switch {
	case in.Name == "":
		return orders.Product{}, fmt.Errorf("%w: product name is empty", orders.ErrInvalidInput)
	case in.Price <= 0:
		return orders.Product{}, fmt.Errorf("%w: price must be positive", orders.ErrInvalidInput)
	case in.Stock <= 0:
		return orders.Product{}, fmt.Errorf("%w: stock must be positive", orders.ErrInvalidInput)
	}
	if in.Description == "" {
		in.Description = "-"
	}

	var created orders.Product
	err := c.Store.Update(ctx, func(doc *orders.Document) error {
		created = doc.AddProduct(orders.Product{
			Name:              in.Name,
			Price:             in.Price,
			Stock:             in.Stock,
			Description:       in.Description,
			Delivery:          in.Delivery,
			SellerID:          seller.ID,
			SellerDisplayName: seller.Name,
			CreatedAt:         c.now(),
		})
		return nil
	})
	if err != nil {
		return orders.Product{}, err
	}
	c.log().WithFields(logrus.Fields{"product_id": created.ID, "seller_id": seller.ID}).Info("product created")
	return created, nil
}

func (c *Catalog) Find(ctx context.Context, id int64) (orders.Product, error) {
	doc, err := c.Store.View(ctx)
	if err != nil {
		return orders.Product{}, err
	}
	p := doc.Product(id)
	if p == nil {
		return orders.Product{}, fmt.Errorf("product %d: %w", id, orders.ErrNotFound)
	}
	return *p, nil
}

func (c *Catalog) ListAll(ctx context.Context) ([]orders.Product, error) {
	doc, err := c.Store.View(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Products, nil
}

// Search matches filter case-insensitively against name or description.
// An empty filter returns every product.
func (c *Catalog) Search(ctx context.Context, filter string) (Listing, error) {
	doc, err := c.Store.View(ctx)
	if err != nil {
		return Listing{}, err
	}
	q := strings.ToLower(strings.TrimSpace(filter))
	out := Listing{TotalProducts: len(doc.Products), Products: []orders.Product{}}
	for _, p := range doc.Products {
		out.TotalStock += p.Stock
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out.Products = append(out.Products, p)
		}
	}
	return out, nil
}

func (c *Catalog) ListBySeller(ctx context.Context, sellerID int64) ([]orders.Product, error) {
	doc, err := c.Store.View(ctx)
	if err != nil {
		return nil, err
	}
	out := []orders.Product{}
	for _, p := range doc.Products {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Catalog) Remove(ctx context.Context, id int64, actor auth.Actor) error {
	if c.Policy != PolicySeller && !actor.Admin {
		return fmt.Errorf("remove product: %w: admin only", orders.ErrForbidden)
	}
	err := c.Store.Update(ctx, func(doc *orders.Document) error {
		p := doc.Product(id)
		if p == nil {
			return fmt.Errorf("product %d: %w", id, orders.ErrNotFound)
		}
		if c.Policy == PolicySeller && p.SellerID != actor.ID {
			return fmt.Errorf("remove product %d: %w: not the seller", id, orders.ErrForbidden)
		}
		doc.RemoveProduct(id)
		return nil
	})
	if err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{"product_id": id, "actor_id": actor.ID}).Info("product removed")
	return nil
}

// ForViewer hides delivery content from anyone but admins and the seller.
func ForViewer(p orders.Product, viewer auth.Actor) orders.Product {
	if !viewer.Admin && viewer.ID != p.SellerID {
		p.Delivery = ""
	}
	return p
}

func (c *Catalog) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
