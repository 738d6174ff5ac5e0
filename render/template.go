package render

// Clause is one numbered section of the agreement body.
type Clause struct {
	Key  string `json:"key,omitempty"`
	Text string `json:"text"`
}

type Rent struct {
	Amount            float64
	Cycle             string
	DueDateDay        int
	UtilitiesIncluded bool
	AmountInWords     string
}

type Deposit struct {
	Amount        float64
	Status        string
	AmountInWords string
}

type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
}

type Unit struct {
	ID      string
	Title   string
	Address Address
}

type Party struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

func (p Party) Name() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

type Signer struct {
	UserID   string
	Name     string
	Method   string
	SignedAt string
}

// TemplateData is everything a renderer needs to produce an agreement
// document. Amount words are filled by Prepare.
type TemplateData struct {
	TemplateName string
	StateCode    string
	Clauses      []Clause
	Version      int
	CreatedAt    string
	Rent         Rent
	Deposit      *Deposit
	Unit         Unit
	Owner        Party
	Tenant       Party
	Signers      []Signer
	Meta         map[string]any
}

// Prepare returns a copy of d with defaults applied and amounts spelled out.
// A zero deposit amount gets no words.
func Prepare(d TemplateData) TemplateData {
	if d.Version < 1 {
		d.Version = 1
	}
	if d.Rent.Cycle == "" {
		d.Rent.Cycle = "monthly"
	}
	d.Rent.AmountInWords = AmountInWords(d.Rent.Amount)
	if d.Deposit != nil {
		dep := *d.Deposit
		dep.AmountInWords = ""
		if dep.Amount != 0 {
			dep.AmountInWords = AmountInWords(dep.Amount)
		}
		d.Deposit = &dep
	}
	return d
}
