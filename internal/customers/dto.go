package customers

type CreateCustomerRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Address        string `json:"address" validate:"required,max=500"`
	WhatsAppNumber string `json:"whatsapp_number" validate:"required,max=50"`
}

type UpdateCustomerRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Address        *string `json:"address,omitempty" validate:"omitempty,min=1,max=500"`
	WhatsAppNumber *string `json:"whatsapp_number,omitempty" validate:"omitempty,min=1,max=50"`
}

// Empty reports whether the request carries no field changes.
func (r UpdateCustomerRequest) Empty() bool {
	return r.Name == nil && r.Address == nil && r.WhatsAppNumber == nil
}
