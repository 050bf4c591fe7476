package domain

// Ticket is a backlog entry. List responses carry only ID and Title.
type Ticket struct {
	ID          string `json:"id" mapstructure:"id" redis:"id"`
	Title       string `json:"title" mapstructure:"title" redis:"title"`
	Description string `json:"description,omitempty" mapstructure:"description" redis:"description"`
}

// Summary strips the description, as returned by list endpoints.
func (t Ticket) Summary() Ticket {
	return Ticket{ID: t.ID, Title: t.Title}
}

// SampleTickets returns the demo backlog used to seed empty backends.
func SampleTickets() []Ticket {
	return []Ticket{
		{ID: "id1", Title: "Ticket 1", Description: "Ticket 1 description..."},
		{ID: "id2", Title: "Ticket 2", Description: "Ticket 2 description..."},
		{ID: "id3", Title: "Ticket 3", Description: "Ticket 3 description..."},
	}
}
