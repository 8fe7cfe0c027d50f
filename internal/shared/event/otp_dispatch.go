package event

const OTPDispatchDestination string = "otp.dispatch"
const OTPDispatchDestinationConsumerNotification string = "otp.dispatch.notification"

// OTPDispatchMessage asks the notification module to deliver a code or a
// welcome message. Code is empty for welcome messages and Name is only set
// for them.
type OTPDispatchMessage struct {
	DeliveryID string `json:"delivery_id"`
	Identifier string `json:"identifier"`
	Channel    string `json:"channel"`
	UseCase    string `json:"use_case"`
	Code       string `json:"code,omitempty"`
	Name       string `json:"name,omitempty"`
}
