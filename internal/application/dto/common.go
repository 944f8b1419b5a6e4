package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MessageResponse respuesta sin datos (acciones aceptadas).
type MessageResponse struct {
	Message string `json:"message"`
}
