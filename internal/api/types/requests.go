package types

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type CreateCollaboratorRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email"`
	CPF   string `json:"cpf" validate:"required"`
	City  string `json:"city" validate:"required,max=255"`
	State string `json:"state" validate:"required,len=2"`
}

type UpdateCollaboratorRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=255"`
	Email *string `json:"email" validate:"omitempty,email"`
	CPF   *string `json:"cpf"`
	City  *string `json:"city" validate:"omitempty,max=255"`
	State *string `json:"state" validate:"omitempty,len=2"`
}
