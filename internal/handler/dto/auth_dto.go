package dto

// RedeemTokenRequest - тело запроса обмена токена входа
type RedeemTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// LoginResponse - ответ после успешного обмена токена
type LoginResponse struct {
	Success     bool   `json:"success"`
	TelegramID  int64  `json:"telegram_id"`
	AccessToken string `json:"access_token"`
}

// WSTicketResponse - короткоживущий тикет для подключения к WebSocket
type WSTicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}
