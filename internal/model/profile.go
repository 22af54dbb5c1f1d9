package model

// Profile is the customer data accumulated over a conversation.
// Fields are filled monotonically; see Merge.
type Profile struct {
	// Personal details
	Name  string `json:"name,omitempty"`
	Age   int    `json:"age,omitempty"`
	City  string `json:"city,omitempty"`
	Phone string `json:"phone,omitempty"`

	Address string `json:"address,omitempty"`

	// Verification outcome
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Verified   bool   `json:"verified,omitempty"`

	// Underwriting outcome
	CreditScore      int   `json:"credit_score,omitempty"`
	PreApprovedLimit int64 `json:"pre_approved_limit,omitempty"`

	LoanAmount    int64 `json:"loan_amount,omitempty"`
	MonthlyIncome int64 `json:"monthly_income,omitempty"`

	// Document pipeline outcome
	DocumentsVerified bool   `json:"documents_verified,omitempty"`
	Employer          string `json:"employer,omitempty"`
	EmploymentType    string `json:"employment_type,omitempty"`
}

// Merge copies every field that is set in delta and still empty in p.
// Accepted values are never cleared or overwritten.
func (p *Profile) Merge(delta Profile) {
	setString(&p.Name, delta.Name)
	setInt(&p.Age, delta.Age)
	setString(&p.City, delta.City)
	setString(&p.Phone, delta.Phone)
	setString(&p.Address, delta.Address)
	setString(&p.CustomerID, delta.CustomerID)
	setString(&p.Email, delta.Email)
	p.Verified = p.Verified || delta.Verified
	setInt(&p.CreditScore, delta.CreditScore)
	setInt64(&p.PreApprovedLimit, delta.PreApprovedLimit)
	setInt64(&p.LoanAmount, delta.LoanAmount)
	setInt64(&p.MonthlyIncome, delta.MonthlyIncome)
	p.DocumentsVerified = p.DocumentsVerified || delta.DocumentsVerified
	setString(&p.Employer, delta.Employer)
	setString(&p.EmploymentType, delta.EmploymentType)
}

func setString(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 && v != 0 {
		*dst = v
	}
}

func setInt64(dst *int64, v int64) {
	if *dst == 0 && v != 0 {
		*dst = v
	}
}
