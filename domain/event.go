package domain

// EventDetails снимок события из event-service. Детали события читаются
// при допуске бронирования и не кешируются между запросами.
type EventDetails struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Capacity       int         `json:"capacity"`
	AvailableSeats int         `json:"availableSeats"`
	Status         EventStatus `json:"status"`
}

// AcceptsBookings проверяет, принимает ли событие бронирования
func (e *EventDetails) AcceptsBookings() bool {
	return e.Status == EventStatusPublished || e.Status == EventStatusOngoing
}
