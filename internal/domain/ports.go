package domain

// EventPublisher передаёт события продаж наружу. Публикация не должна блокировать
// вызывающего и не влияет на результат уже сохранённой операции.
type EventPublisher interface {
	Publish(event Event)
}

// EventPublisherFunc адаптирует функцию к EventPublisher.
type EventPublisherFunc func(event Event)

// Publish вызывает f(event).
func (f EventPublisherFunc) Publish(event Event) {
	f(event)
}

// NopPublisher отбрасывает все события.
var NopPublisher EventPublisher = EventPublisherFunc(func(Event) {})
