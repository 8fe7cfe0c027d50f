package entity

// Delivery is one message the identity module asked to be sent.
type Delivery struct {
	ID         string
	Channel    Channel
	Recipient  string
	TriggerKey TriggerKey
	Code       string
	Name       string
}

// Content is a rendered message. Subject, Text and HTML are used for email;
// SMS uses Text only.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

// Receipt reports the outcome of a delivery.
type Receipt struct {
	DeliveryID        string
	ProviderMessageID string
	Status            DeliveryStatus
}
