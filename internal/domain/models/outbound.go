package models

// Notification is the message delivered to a farm owner for one alert.
type Notification struct {
	To      string `json:"to"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	AlertID string `json:"alert_id,omitempty"`
}
