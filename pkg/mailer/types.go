package mailer

import (
	"fmt"
	"strconv"
)

// Tags are provider metadata attached to a message, e.g. the edition it belongs to.
// Values are stringified by the provider adapter.
type Tags map[string]string

// With returns a copy of t with name set to value.
func (t Tags) With(name string, value any) Tags {
	out := make(Tags, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	switch v := value.(type) {
	case string:
		out[name] = v
	case int64:
		out[name] = strconv.FormatInt(v, 10)
	case int:
		out[name] = strconv.Itoa(v)
	default:
		out[name] = fmt.Sprint(v)
	}
	return out
}

// Recipient formats a display name and address as "Name <email>".
// An empty name yields the bare address.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// Email is a fully prepared message.
type Email struct {
	Headers map[string]string
	Tags    Tags
	Subject string
	HTML    string
	Text    string
	From    string // provider default when empty
	ReplyTo string
	To      []string
}

// Validate checks the fields every provider needs.
func (e *Email) Validate() error {
	switch {
	case len(e.To) == 0 || e.To[0] == "":
		return ErrNoRecipient
	case e.Subject == "":
		return ErrNoSubject
	case e.HTML == "":
		return ErrNoContent
	}
	return nil
}
