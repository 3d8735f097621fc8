package profile

type CreateProfileRequest struct {
	Username    string  `json:"username" validate:"required,min=3,max=30"`
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=60"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=280"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=60"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=280"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.DisplayName == nil && r.Bio == nil && r.AvatarURL == nil
}

type UsernameAvailability struct {
	Available bool `json:"available"`
}
