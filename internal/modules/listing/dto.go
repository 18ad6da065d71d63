package listing

type CreatePropertyRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	NightlyRate int64  `json:"nightly_rate" binding:"required,gt=0"`
}

type UpdatePropertyRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	NightlyRate *int64  `json:"nightly_rate"`
}
