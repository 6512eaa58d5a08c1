package order

// Patch is a partial update of an order. Nil fields are left untouched and
// the id is never patchable.
type Patch struct {
	Address       *string `json:"address,omitempty"`
	Status        *Status `json:"order_status,omitempty"`
	CustomerEmail *string `json:"customer_email,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Address == nil && p.Status == nil && p.CustomerEmail == nil
}

func (p Patch) Validate() error {
	if p.Address != nil {
		if err := ValidateAddress(*p.Address); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if p.CustomerEmail != nil {
		if err := ValidateEmail(*p.CustomerEmail); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns the patch keyed by document field name.
func (p Patch) Fields() map[string]any {
	out := make(map[string]any, 3)
	if p.Address != nil {
		out["address"] = *p.Address
	}
	if p.Status != nil {
		out["order_status"] = string(*p.Status)
	}
	if p.CustomerEmail != nil {
		out["customer_email"] = *p.CustomerEmail
	}
	return out
}
