package dto

// UpdateProgressRequest - тело запроса отметки урока
type UpdateProgressRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}
