package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmploymentStatus describes how the client earns income.
type EmploymentStatus string

const (
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentFullTime     EmploymentStatus = "full_time"
	EmploymentPartTime     EmploymentStatus = "part_time"
	EmploymentNone         EmploymentStatus = "none"
)

// VATStatus describes the client's VAT registration.
type VATStatus string

const (
	VATActive VATStatus = "vat_active"
	VATExempt VATStatus = "vat_exempt"
	VATEU     VATStatus = "vat_eu"
)

// TaxScheme is the income tax settlement form.
type TaxScheme string

const (
	TaxGeneral TaxScheme = "general"
	TaxLinear  TaxScheme = "linear"
	TaxLumpSum TaxScheme = "lump_sum"
	TaxCard    TaxScheme = "tax_card"
)

// ZUSScheme is the social insurance contribution scheme.
type ZUSScheme string

const (
	ZUSFull         ZUSScheme = "full"
	ZUSPreferential ZUSScheme = "preferential"
	ZUSSmall        ZUSScheme = "small_zus"
	ZUSNone         ZUSScheme = "none"
)

// Client is a tenant-scoped business record. Soft delete is modeled with
// IsActive so a deactivated client can be restored with its history; hard
// delete is a separate irreversible operation on the service.
type Client struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	CompanyID string  `gorm:"type:uuid;not null;index"`
	Company   Company `gorm:"foreignKey:CompanyID"`

	Name    string `gorm:"not null;index"`
	Email   string
	Phone   string
	NIP     string `gorm:"column:nip;index"`
	REGON   string
	PKDCode string

	EmploymentStatus EmploymentStatus `gorm:"index"`
	VATStatus        VATStatus        `gorm:"index"`
	TaxScheme        TaxScheme
	ZUSScheme        ZUSScheme
	GTUCodes         []string `gorm:"serializer:json"`

	Notes            string
	CooperationStart *time.Time

	IsActive  bool `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
