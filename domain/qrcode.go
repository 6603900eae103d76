package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// QRPayload содержимое QR-кода билета. Строка полезной нагрузки хранится
// на билете, отрисовка изображения - забота клиента.
type QRPayload struct {
	TicketID  string    `json:"ticketId"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerateQRPayload формирует строку QR-кода, привязанную к билету,
// событию и пользователю на момент создания
func GenerateQRPayload(ticketID, eventID, userID string) (string, error) {
	if ticketID == "" || eventID == "" || userID == "" {
		return "", fmt.Errorf("qr payload: ticketId, eventId and userId are required")
	}

	payload := QRPayload{
		TicketID:  ticketID,
		EventID:   eventID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal qr payload: %w", err)
	}
	return string(data), nil
}

// ValidateQRPayload разбирает строку QR-кода и возвращает содержимое.
// Некорректная или неполная строка считается невалидным кодом.
func ValidateQRPayload(raw string) (*QRPayload, error) {
	var payload QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("invalid qr payload: %w", err)
	}
	if payload.TicketID == "" || payload.EventID == "" || payload.UserID == "" {
		return nil, fmt.Errorf("invalid qr payload: missing required fields")
	}
	return &payload, nil
}
