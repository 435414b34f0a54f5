package tenant

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// VerificationStatus represents the review state of a business verification
type VerificationStatus string

const (
	VerificationStatusSubmitted VerificationStatus = "submitted"
	VerificationStatusApproved  VerificationStatus = "approved"
	VerificationStatusRejected  VerificationStatus = "rejected"
)

// InviteStatus represents the state of a team invitation
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusExpired  InviteStatus = "expired"
)

// ImportStatus represents the state of a data import job
type ImportStatus string

const (
	ImportStatusQueued    ImportStatus = "queued"
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// Branding holds a tenant's visual identity.
type Branding struct {
	TenantID       uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CompanyName    string    `json:"company_name" db:"company_name"`
	LogoURL        string    `json:"logo_url" db:"logo_url"`
	PrimaryColor   string    `json:"primary_color" db:"primary_color"`
	SecondaryColor string    `json:"secondary_color" db:"secondary_color"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Features holds the platform features a tenant has enabled.
type Features struct {
	TenantID        uuid.UUID      `json:"tenant_id" db:"tenant_id"`
	EnabledFeatures pq.StringArray `json:"enabled_features" db:"enabled_features"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Subscription holds a tenant's plan selection.
type Subscription struct {
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	PlanCode     string    `json:"plan_code" db:"plan_code"`
	BillingCycle string    `json:"billing_cycle" db:"billing_cycle"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Verification holds a tenant's business verification submission. Document
// handling and tax-identifier validation live with the verification
// provider, not here.
type Verification struct {
	TenantID    uuid.UUID          `json:"tenant_id" db:"tenant_id"`
	LegalName   string             `json:"legal_name" db:"legal_name"`
	TaxID       string             `json:"tax_id" db:"tax_id"`
	Country     string             `json:"country" db:"country"`
	Status      VerificationStatus `json:"status" db:"status"`
	SubmittedAt time.Time          `json:"submitted_at" db:"submitted_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`
}

// TeamInvite is one pending or resolved team invitation.
type TeamInvite struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	TenantID  uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	Email     string       `json:"email" db:"email"`
	Role      string       `json:"role" db:"role"`
	Status    InviteStatus `json:"status" db:"status"`
	InvitedAt time.Time    `json:"invited_at" db:"invited_at"`
}

// ImportJob records a requested data migration. Parsing the uploaded file is
// the import pipeline's concern; the portal only tracks the job.
type ImportJob struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	TenantID  uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	Source    string       `json:"source" db:"source"`
	Entity    string       `json:"entity" db:"entity"`
	Status    ImportStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
