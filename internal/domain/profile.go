package domain

import "time"

// ProfessionalType enumerates the kinds of professionals listed in the
// directory.
type ProfessionalType string

const (
	ProAgent     ProfessionalType = "agent"
	ProBroker    ProfessionalType = "broker"
	ProAppraiser ProfessionalType = "appraiser"
	ProInspector ProfessionalType = "inspector"
	ProLender    ProfessionalType = "lender"
	ProAttorney  ProfessionalType = "attorney"
	ProInvestor  ProfessionalType = "investor"
)

// Valid reports whether t is one of the known professional types.
func (t ProfessionalType) Valid() bool {
	switch t {
	case ProAgent, ProBroker, ProAppraiser, ProInspector, ProLender, ProAttorney, ProInvestor:
		return true
	}
	return false
}

// Registration steps, saved in order.
const (
	StepBasicInfo    = 1
	StepProfessional = 2
	StepServices     = 3
	FinalStep        = StepServices
)

// Profile is the public record of a user. Its ID equals the auth user id.
// RegistrationStep is the last completed registration step (0 = none).
type Profile struct {
	ID                      string           `json:"id"                               gorm:"type:varchar(64);primaryKey"`
	FullName                string           `json:"full_name"                        gorm:"type:varchar(255)"`
	Headline                string           `json:"headline,omitempty"               gorm:"type:varchar(255)"`
	Bio                     string           `json:"bio,omitempty"                    gorm:"type:text"`
	ProfessionalType        ProfessionalType `json:"professional_type,omitempty"      gorm:"type:varchar(32);index:idx_profiles_directory,priority:2"`
	City                    string           `json:"city,omitempty"                   gorm:"type:varchar(128);index:idx_profiles_directory,priority:3"`
	State                   string           `json:"state,omitempty"                  gorm:"type:varchar(64)"`
	LicenseNumber           string           `json:"license_number,omitempty"         gorm:"type:varchar(64)"`
	LicenseState            string           `json:"license_state,omitempty"          gorm:"type:varchar(64)"`
	YearsExperience         int              `json:"years_experience"                 gorm:"not null;default:0"`
	Services                string           `json:"services,omitempty"               gorm:"type:text"` // comma-separated
	AvatarURL               string           `json:"avatar_url,omitempty"             gorm:"type:text"`
	LicenseDocURL           string           `json:"license_doc_url,omitempty"        gorm:"type:text"`
	IsProfessional          bool             `json:"is_professional"                  gorm:"not null;default:false;index:idx_profiles_directory,priority:1"`
	RegistrationStep        int              `json:"registration_step"                gorm:"not null;default:0"`
	RegistrationCompletedAt *time.Time       `json:"registration_completed_at,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// Public is p as other users see it; the license document stays private.
func (p Profile) Public() Profile {
	p.LicenseDocURL = ""
	return p
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }
