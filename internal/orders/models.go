package orders

import "time"

type Product struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Price             int64     `json:"price"` // smallest currency unit
	Stock             int       `json:"stock"`
	Description       string    `json:"description"`
	Delivery          string    `json:"delivery"` // dikirim ke pembeli setelah approve
	SellerID          int64     `json:"seller_id"`
	SellerDisplayName string    `json:"seller_username"`
	CreatedAt         time.Time `json:"created_at"`
}

// Order snapshots product name and total at creation; later product edits
// or deletion never change them.
type Order struct {
	ID               int64      `json:"id"`
	ProductID        int64      `json:"product_id"`
	ProductName      string     `json:"product_name"`
	Qty              int        `json:"qty"`
	Total            int64      `json:"total"`
	BuyerID          int64      `json:"buyer_id"`
	BuyerDisplayName string     `json:"buyer_name"`
	Status           Status     `json:"status"` // lihat status.go
	CreatedAt        time.Time  `json:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	RejectedAt       *time.Time `json:"rejected_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	ApprovedBy       *int64     `json:"approved_by,omitempty"`
	RejectedBy       *int64     `json:"rejected_by,omitempty"`
	ProofSubmittedAt *time.Time `json:"proof_submitted_at,omitempty"`
	ProofType        ProofType  `json:"proof_type,omitempty"`
	ProofRef         string     `json:"proof_file_id,omitempty"`
}

type ProofType string

const (
	ProofPhoto    ProofType = "photo"
	ProofDocument ProofType = "document"
)

func (p ProofType) Valid() bool {
	return p == ProofPhoto || p == ProofDocument
}

// Document is the aggregate root persisted as a whole by the store.
type Document struct {
	NextProductID int64     `json:"next_id"`
	NextOrderID   int64     `json:"next_order_id"`
	Products      []Product `json:"products"`
	Orders        []Order   `json:"orders"`
}

func NewDocument() *Document {
	return &Document{NextProductID: 1, NextOrderID: 1, Products: []Product{}, Orders: []Order{}}
}

// Normalize fills the defaults a partially written or legacy document may lack.
func (d *Document) Normalize() {
	if d.NextProductID < 1 {
		d.NextProductID = 1
	}
	if d.NextOrderID < 1 {
		d.NextOrderID = 1
	}
	if d.Products == nil {
		d.Products = []Product{}
	}
	if d.Orders == nil {
		d.Orders = []Order{}
	}
	// counters must stay ahead of every stored key, ids are never reused
	for _, p := range d.Products {
		if p.ID >= d.NextProductID {
			d.NextProductID = p.ID + 1
		}
	}
	for _, o := range d.Orders {
		if o.ID >= d.NextOrderID {
			d.NextOrderID = o.ID + 1
		}
	}
}

// Product returns a pointer into d.Products, valid until d is modified.
func (d *Document) Product(id int64) *Product {
	for i := range d.Products {
		if d.Products[i].ID == id {
			return &d.Products[i]
		}
	}
	return nil
}

func (d *Document) Order(id int64) *Order {
	for i := range d.Orders {
		if d.Orders[i].ID == id {
			return &d.Orders[i]
		}
	}
	return nil
}

func (d *Document) AddProduct(p Product) Product {
	p.ID = d.NextProductID
	d.NextProductID++
	d.Products = append(d.Products, p)
	return p
}

func (d *Document) AddOrder(o Order) Order {
	o.ID = d.NextOrderID
	d.NextOrderID++
	d.Orders = append(d.Orders, o)
	return o
}

func (d *Document) RemoveProduct(id int64) bool {
	for i := range d.Products {
		if d.Products[i].ID == id {
			d.Products = append(d.Products[:i], d.Products[i+1:]...)
			return true
		}
	}
	return false
}
