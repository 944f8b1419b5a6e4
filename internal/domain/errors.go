package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")

	// Códigos de verificación.
	ErrInvalidCode = errors.New("código de verificación inválido")
	ErrExpired     = errors.New("código de verificación expirado")

	// Membresías.
	ErrAlreadyMember = errors.New("el usuario ya es miembro de la unidad")
	ErrLastAdmin     = errors.New("la unidad debe conservar al menos un ADMIN")

	// ErrStorageUnavailable ningún nivel de almacenamiento respondió.
	ErrStorageUnavailable = errors.New("almacenamiento no disponible")
)
