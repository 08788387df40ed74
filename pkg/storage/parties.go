package storage

import (
	"context"

	"github.com/chris/trustline/pkg/models"
)

// VendorReader defines the read access the credit core needs to vendors.
type VendorReader interface {
	// GetVendor retrieves a vendor. Returns ErrNotFound when absent.
	GetVendor(ctx context.Context, vendorID string) (*models.Vendor, error)
}

// VendorStore adds seeding on top of VendorReader. Vendor management itself lives elsewhere.
type VendorStore interface {
	VendorReader
	PutVendor(ctx context.Context, vendor *models.Vendor) error
}

// CustomerStore maps phone numbers to stable customer ids.
type CustomerStore interface {
	// EnsureCustomer inserts customer if its phone is unknown and returns the stored record either way.
	EnsureCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)

	// GetCustomerByPhone retrieves a customer by phone. Returns ErrNotFound when absent.
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
}
