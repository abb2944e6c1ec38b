package models

// MailAttachment is a binary file attached to an outbound email.
type MailAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// MailMessage is an outbound email handed to the mail collaborator.
type MailMessage struct {
	FromName    string
	To          []string
	Subject     string
	Body        string
	Attachments []MailAttachment
}

// OutboundMessageRequest is a short text notification sent over WhatsApp.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}
