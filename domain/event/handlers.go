package event

// Handler Each kind of event has his own handler
// Based on the Chain of responsibility pattern
type Handler interface {
	Handle(event Event)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(event Event)

func (f HandlerFunc) Handle(event Event) { f(event) }
