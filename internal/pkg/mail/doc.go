// Package mail defines the contracts for sending email messages.
//
// Use cases work with the Mail interface and Message payload. SMTP delivers
// through a real server; Log stands in when no server is configured.
package mail
